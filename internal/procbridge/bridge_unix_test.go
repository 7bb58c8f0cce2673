//go:build unix

package procbridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	// orphan leaves a grandchild in its own session holding stdout open.
	extraHelperModes["orphan"] = func() {
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess")
		child.Env = append(os.Environ(), helperModeEnv+"=sleep")
		child.Stdout = os.Stdout
		child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		if err := child.Start(); err != nil {
			os.Exit(4)
		}
		fmt.Fprintf(os.Stdout, "pid:%d\n", child.Process.Pid)
		os.Exit(0)
	}
}

func TestExecute_TimeoutKillsProcess(t *testing.T) {
	b := helperBridge(t, 300*time.Millisecond)
	res := b.Execute(context.Background(), nil, helperOpts("pid-sleep", 2*time.Second))

	if !res.TimedOut {
		t.Fatalf("TimedOut = false: %+v", res)
	}
	pid := helperPID(t, res.Stdout)
	if err := unix.Kill(pid, 0); err == nil {
		_ = unix.Kill(pid, unix.SIGKILL)
		t.Errorf("process %d still alive after timeout", pid)
	}
}

func TestExecute_ContextCancelKillsProcess(t *testing.T) {
	b := helperBridge(t, 300*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := b.Execute(ctx, nil, helperOpts("pid-sleep", time.Minute))
	if res.Succeeded || res.TimedOut {
		t.Fatalf("want cancelled run, got %+v", res)
	}
	pid := helperPID(t, res.Stdout)
	if err := unix.Kill(pid, 0); err == nil {
		_ = unix.Kill(pid, unix.SIGKILL)
		t.Errorf("process %d still alive after cancellation", pid)
	}
}

func TestExecute_HeldStreamDoesNotHideExit(t *testing.T) {
	b := helperBridge(t, 200*time.Millisecond)
	res := b.Execute(context.Background(), nil, helperOpts("orphan", 30*time.Second))

	pid := helperPID(t, res.Stdout)
	t.Cleanup(func() { _ = unix.Kill(pid, unix.SIGKILL) })

	if !res.Succeeded || res.TimedOut {
		t.Fatalf("child exited 0 but result is %+v", res)
	}
	if code, ok := res.Code(); !ok || code != 0 {
		t.Errorf("ExitCode = %v/%v, want 0", code, ok)
	}
	if res.Duration() > 10*time.Second {
		t.Errorf("Duration = %v, held stream blocked completion", res.Duration())
	}
}
