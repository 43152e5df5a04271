package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Minute

// DefaultCommand is the scanner invocation before report arguments are added.
var DefaultCommand = []string{"cargo", "audit"}

// InvocationError means the scanner did not produce a usable report.
type InvocationError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

var (
	ErrNotFound    = errors.New("scanner executable not found")
	ErrTimeout     = errors.New("scanner timed out")
	ErrEmptyOutput = errors.New("scanner produced no output")
	ErrNotJSON     = errors.New("scanner output is not JSON")
)

type Options struct {
	// Command is the executable followed by its leading arguments.
	Command      []string
	File         string
	Ignore       []string
	DenyWarnings bool
	WorkDir      string
	Timeout      time.Duration
}

type Scanner struct {
	opts Options
}

func New(opts Options) *Scanner {
	if len(opts.Command) == 0 {
		opts.Command = DefaultCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Scanner{opts: opts}
}

// Args returns the arguments passed after the command.
func (s *Scanner) Args() []string {
	args := append([]string{}, s.opts.Command[1:]...)
	args = append(args, "--json")
	if s.opts.File != "" {
		args = append(args, "--file", s.opts.File)
	}
	for _, id := range s.opts.Ignore {
		if id = strings.TrimSpace(id); id != "" {
			args = append(args, "--ignore", id)
		}
	}
	if s.opts.DenyWarnings {
		args = append(args, "--deny", "warnings")
	}
	return args
}

// Scan runs the scanner and returns its JSON report. A non-zero exit code is
// not a failure on its own: cargo audit exits 1 when it finds vulnerabilities.
func (s *Scanner) Scan(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	name, args := s.opts.Command[0], s.Args()
	command := strings.Join(append([]string{name}, args...), " ")
	slog.InfoContext(ctx, "Running scanner", "command", command, "dir", s.opts.WorkDir)

	res, err := Run(ctx, name, args, s.opts.WorkDir)
	slog.DebugContext(ctx, "Scanner finished", "exit_code", res.ExitCode, "duration", res.Duration, "stdout_bytes", len(res.Stdout))

	invErr := func(cause error) error {
		return &InvocationError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: cause}
	}
	switch {
	case res.ExitCode == ExitNotFound:
		return nil, invErr(fmt.Errorf("%w: %v", ErrNotFound, err))
	case res.ExitCode == ExitTimeout:
		return nil, invErr(fmt.Errorf("%w after %v", ErrTimeout, s.opts.Timeout))
	case len(strings.TrimSpace(string(res.Stdout))) == 0:
		if err != nil {
			return nil, invErr(fmt.Errorf("%w: %v", ErrEmptyOutput, err))
		}
		return nil, invErr(ErrEmptyOutput)
	case !json.Valid(res.Stdout):
		return nil, invErr(ErrNotJSON)
	}
	return res.Stdout, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
