package py4go

import (
	"context"
	_ "embed"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

//go:embed scripts/bootstrap.py
var bootstrapScript string

// Environment variables set for a launched interpreter.
const (
	EnvGatewayPort = "PY4GO_PORT"
	EnvAuthToken   = "PY4GO_AUTH_TOKEN"
	EnvStatusFD    = "PY4GO_STATUS_FD"
)

// LaunchOptions describes an interpreter to start.
type LaunchOptions struct {
	// Python is the interpreter executable; FindPython when empty.
	Python string

	// Script is the program to run and Args its arguments.
	Script string
	Args   []string

	// Dir is the working directory and Env extra environment variables.
	Dir string
	Env map[string]string

	// GatewayPort and AuthToken tell the program how to reach the gateway.
	GatewayPort int
	AuthToken   string

	// Stdout and Stderr receive the program's output; the launcher's own
	// streams when nil.
	Stdout io.Writer
	Stderr io.Writer
}

// Interpreter is a launched interpreter process.
//
// The program reports on a status pipe inherited as an extra file
// descriptor: once its callback server listens it calls
// py4go_launcher.ready(port), an uncaught exception is reported before it
// exits, and "exit" is reported last.
type Interpreter struct {
	Cmd     *exec.Cmd
	Version PythonVersion

	// Exceptions receives exceptions reported by the program.
	Exceptions chan *PythonException

	ready      chan int
	statusDone chan struct{}
	waitOnce   sync.Once
	waitErr    error
	log        commonlog.Logger
}

// FindPython looks for an interpreter on PATH: python3 then python, or on
// Windows the py launcher then python, skipping the store placeholders.
func FindPython() (string, error) {
	candidates := []string{"python3", "python"}
	if runtime.GOOS == "windows" {
		candidates = []string{"py", "python"}
	}
	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		if strings.Contains(path, `Microsoft\WindowsApps`) {
			continue
		}
		return path, nil
	}
	return "", errors.Errorf("no python interpreter found on PATH (tried %s)", strings.Join(candidates, ", "))
}

// ProbePythonVersion runs "python --version".
func ProbePythonVersion(ctx context.Context, python string) (PythonVersion, error) {
	out, err := exec.CommandContext(ctx, python, "--version").CombinedOutput()
	if err != nil {
		return PythonVersion{}, errors.Wrapf(err, "cannot run %s", python)
	}
	return ParsePythonVersion(strings.TrimSpace(string(out)))
}

// Launch starts the interpreter described by opts. Cancelling ctx kills it.
func Launch(ctx context.Context, opts LaunchOptions) (*Interpreter, error) {
	if opts.Script == "" {
		return nil, errors.New("no script to launch")
	}
	python := opts.Python
	if python == "" {
		var err error
		if python, err = FindPython(); err != nil {
			return nil, err
		}
	}
	version, err := ProbePythonVersion(ctx, python)
	if err != nil {
		return nil, err
	}
	if version.Compare(MinPythonVersion) < 0 {
		return nil, errors.Errorf("python %s is older than %s", version, MinPythonVersion)
	}

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cmd := exec.CommandContext(ctx, python, append([]string{"-u", "-c", bootstrapScript, opts.Script}, opts.Args...)...)
	cmd.Dir = opts.Dir
	fds := setExtraFiles(cmd, []*os.File{statusW})
	cmd.Env = append(os.Environ(),
		EnvGatewayPort+"="+strconv.Itoa(opts.GatewayPort),
		EnvStatusFD+"="+fds[0],
	)
	if opts.AuthToken != "" {
		cmd.Env = append(cmd.Env, EnvAuthToken+"="+opts.AuthToken)
	}
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		statusR.Close()
		statusW.Close()
		return nil, errors.Wrapf(err, "cannot start %s", python)
	}
	// the child holds its own copy of the write end
	statusW.Close()

	ip := &Interpreter{
		Cmd:        cmd,
		Version:    version,
		Exceptions: make(chan *PythonException, 8),
		ready:      make(chan int, 1),
		statusDone: make(chan struct{}),
		log:        commonlog.GetLogger("py4go.launcher"),
	}
	go ip.readStatus(NewStatusPipe(NewFrameTransport(statusR, nil)), statusR)
	ip.log.Infof("launched %s (python %s, pid %d)", opts.Script, version, cmd.Process.Pid)
	return ip, nil
}

func (ip *Interpreter) readStatus(pipe *StatusPipe, r io.Closer) {
	defer close(ip.statusDone)
	defer r.Close()
	for {
		msg, err := pipe.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				ip.log.Warningf("status pipe: %v", err)
			}
			return
		}
		switch msg.Type {
		case StatusType:
			switch msg.Status {
			case StatusReady:
				select {
				case ip.ready <- msg.Port:
				default:
				}
			case StatusExit:
				return
			default:
				ip.log.Debugf("status %q", msg.Status)
			}
		case ExceptionType:
			if msg.Error == nil {
				continue
			}
			ip.log.Errorf("python exception: %s", msg.Error.ToString())
			select {
			case ip.Exceptions <- msg.Error:
			default:
				ip.log.Warningf("dropping python exception %s", msg.Error)
			}
		default:
			ip.log.Warningf("unknown status message type %q", msg.Type)
		}
	}
}

// WaitReady blocks until the program reports its callback port. It fails if
// the program raises or exits first.
func (ip *Interpreter) WaitReady(ctx context.Context) (int, error) {
	select {
	case port := <-ip.ready:
		return port, nil
	case ex := <-ip.Exceptions:
		return 0, ex
	case <-ip.statusDone:
		select {
		case port := <-ip.ready:
			return port, nil
		case ex := <-ip.Exceptions:
			return 0, ex
		default:
		}
		return 0, errors.New("interpreter exited before reporting ready")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Wait blocks until the process exits. It may be called more than once.
func (ip *Interpreter) Wait() error {
	ip.waitOnce.Do(func() {
		ip.waitErr = waitForExit(ip.Cmd)
	})
	return ip.waitErr
}

// Pid returns the process id.
func (ip *Interpreter) Pid() int { return ip.Cmd.Process.Pid }
