//go:build !windows
// +build !windows

package py4go

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// terminateGrace is how long Terminate waits after SIGTERM before killing.
const terminateGrace = 5 * time.Second

// setExtraFiles attaches files to cmd and returns the descriptor numbers the
// child sees them under: 3, 4, ... after stdin, stdout and stderr.
func setExtraFiles(cmd *exec.Cmd, files []*os.File) []string {
	cmd.ExtraFiles = files
	fds := make([]string, len(files))
	for i := range files {
		fds[i] = strconv.Itoa(i + 3)
	}
	return fds
}

func waitForExit(cmd *exec.Cmd) error {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
		return errors.New("interpreter was killed")
	}
	return err
}

// Terminate sends SIGTERM and kills the process if it is still running after
// a grace period.
func (ip *Interpreter) Terminate() error {
	if ip.Cmd.Process == nil {
		return nil
	}
	if err := ip.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return errors.WithStack(err)
	}
	done := make(chan error, 1)
	go func() { done <- ip.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(terminateGrace):
		if err := ip.Cmd.Process.Kill(); err != nil {
			return errors.WithStack(err)
		}
		return <-done
	}
}
