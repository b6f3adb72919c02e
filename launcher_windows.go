//go:build windows
// +build windows

package py4go

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// setExtraFiles passes files as inherited handles and returns their handle
// values for the child.
func setExtraFiles(cmd *exec.Cmd, files []*os.File) []string {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	fds := make([]string, len(files))
	for i, f := range files {
		h := syscall.Handle(f.Fd())
		syscall.SetHandleInformation(h, syscall.HANDLE_FLAG_INHERIT, syscall.HANDLE_FLAG_INHERIT)
		cmd.SysProcAttr.AdditionalInheritedHandles = append(cmd.SysProcAttr.AdditionalInheritedHandles, h)
		fds[i] = strconv.FormatUint(uint64(h), 10)
	}
	return fds
}

func waitForExit(cmd *exec.Cmd) error {
	return cmd.Wait()
}

// Terminate kills the process.
func (ip *Interpreter) Terminate() error {
	if ip.Cmd.Process == nil {
		return nil
	}
	if err := ip.Cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.WithStack(err)
	}
	return ip.Wait()
}
