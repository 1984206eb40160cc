package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"virome-runner/tools"
)

// Runner starts one invocation and waits for it. A non-nil error means the
// process could not be started or did not exit on its own; a plain non-zero
// exit is reported through the exit code alone.
type Runner interface {
	Run(ctx context.Context, inv tools.Invocation, stdout, stderr io.Writer) (int, error)
}

var ErrTerminated = errors.New("terminated after stop request")

// ProcessRunner runs invocations as child processes in their own process
// group. When ctx is done the process gets GracePeriod to exit, then SIGTERM,
// then SIGKILL after KillDelay.
type ProcessRunner struct {
	GracePeriod time.Duration
	KillDelay   time.Duration
}

func (r ProcessRunner) Run(ctx context.Context, inv tools.Invocation, stdout, stderr io.Writer) (int, error) {
	if len(inv.Args) == 0 {
		return -1, errors.New("empty invocation")
	}
	cmd := exec.Command(inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		return -1, err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return exitStatus(err)
	case <-ctx.Done():
	}

	if ok, err := waitFor(done, r.GracePeriod); ok {
		return exitStatus(err)
	}
	signalProcess(cmd, false)
	if ok, err := waitFor(done, r.KillDelay); ok {
		code, _ := exitStatus(err)
		return code, ErrTerminated
	}
	signalProcess(cmd, true)
	err := <-done
	code, _ := exitStatus(err)
	return code, ErrTerminated
}

// waitFor reports whether done fired within d, and what it carried.
func waitFor(done <-chan error, d time.Duration) (bool, error) {
	if d <= 0 {
		select {
		case err := <-done:
			return true, err
		default:
			return false, nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() >= 0 {
		return ee.ExitCode(), nil
	}
	return -1, err
}
