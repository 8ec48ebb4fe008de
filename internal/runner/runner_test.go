package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestExecRunnerNonzeroExitIsNotError(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "echo partial; exit 3")
	if err != nil {
		t.Fatalf("nonzero exit should not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "partial" {
		t.Errorf("stdout = %q, output must survive a nonzero exit", res.Stdout)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	r := NewExecRunner()

	start := time.Now()
	_, err := r.Run(context.Background(), 100*time.Millisecond, "sleep", "10")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v, the process was not killed promptly", elapsed)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), time.Second, "definitely-not-a-command-xyz")
	if err == nil {
		t.Fatal("expected a start error for a missing binary")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("start failure misreported as timeout")
	}
}

func TestResultCombined(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"both", Result{Stdout: "a", Stderr: "b"}, "a\nb"},
		{"stdout only", Result{Stdout: "a"}, "a"},
		{"stderr only", Result{Stderr: "b"}, "b"},
		{"empty", Result{}, ""},
	}

	for _, tt := range tests {
		if got := tt.res.Combined(); got != tt.want {
			t.Errorf("%s: combined = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLabCommandShape(t *testing.T) {
	var gotName string
	var gotArgs []string
	fake := runnerFunc(func(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
		gotName = name
		gotArgs = args
		return Result{}, nil
	})

	lab := NewLab(fake, "docker")

	lab.Exec(context.Background(), 0, "clab-ospf-pc1", "ping", "-c", "1", "10.0.0.1")
	if gotName != "docker" {
		t.Errorf("binary = %q", gotName)
	}
	want := "exec clab-ospf-pc1 ping -c 1 10.0.0.1"
	if strings.Join(gotArgs, " ") != want {
		t.Errorf("args = %v, want %q", gotArgs, want)
	}

	lab.Docker(context.Background(), 0, "stop", "clab-ospf-r1")
	if strings.Join(gotArgs, " ") != "stop clab-ospf-r1" {
		t.Errorf("args = %v", gotArgs)
	}
}

type runnerFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)

func (f runnerFunc) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	return f(ctx, timeout, name, args...)
}
