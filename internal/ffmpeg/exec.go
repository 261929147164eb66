package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Process is a started command whose diagnostic stream is being read.
type Process interface {
	Stderr() io.Reader
	// Wait must only be called after Stderr has been read to EOF.
	Wait() error
}

// Executor abstracts process spawning for testability.
type Executor interface {
	Start(ctx context.Context, binary string, args []string) (Process, error)
}

type commandExecutor struct{}

type commandProcess struct {
	cmd    *exec.Cmd
	stderr io.Reader
}

func (commandExecutor) Start(ctx context.Context, binary string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}
	return &commandProcess{cmd: cmd, stderr: stderr}, nil
}

func (p *commandProcess) Stderr() io.Reader { return p.stderr }

func (p *commandProcess) Wait() error { return p.cmd.Wait() }
