package scanner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

const (
	ExitNotFound = 127
	ExitTimeout  = 124

	// waitDelay bounds how long output is drained after the process is killed.
	waitDelay = 2 * time.Second
)

// Result holds the outcome of one process run.
type Result struct {
	Stdout   []byte
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// Run executes name with args in dir, capturing output. A missing binary is
// reported as exit code 127 and a context deadline as 124.
func Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = 1
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = ExitTimeout
	case errors.Is(err, exec.ErrNotFound):
		res.ExitCode = ExitNotFound
	}
	return res, err
}
