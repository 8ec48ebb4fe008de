package runner

import (
	"context"
	"time"
)

const defaultTimeout = 15 * time.Second

// Lab runs commands against the container lab, either on the host or
// inside a container via docker exec.
type Lab struct {
	runner Runner
	docker string
}

// NewLab creates a Lab using the given docker binary name.
func NewLab(r Runner, dockerBinary string) *Lab {
	if dockerBinary == "" {
		dockerBinary = "docker"
	}
	return &Lab{runner: r, docker: dockerBinary}
}

// Exec runs a command inside the named container.
func (l *Lab) Exec(ctx context.Context, timeout time.Duration, container string, args ...string) (Result, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dockerArgs := append([]string{"exec", container}, args...)
	return l.runner.Run(ctx, timeout, l.docker, dockerArgs...)
}

// Docker runs a docker subcommand on the host (ps, stop, pause, ...).
func (l *Lab) Docker(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return l.runner.Run(ctx, timeout, l.docker, args...)
}
