// Package providers abstracts external command execution so callers
// that shell out (the change analyzer's git invocations, mainly) can be
// tested without running real processes.
package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts real vs recorded command execution.
// Implementations: RealExecutor, DryRunExecutor.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error)
}

// RealExecutor runs commands via os/exec with timeout support through
// the context.
type RealExecutor struct{}

// Execute runs a command with the given arguments and environment.
// On Windows, if the command is not found directly it is retried through
// cmd.exe /C so that shell builtins (echo, set, …) work transparently.
func (r *RealExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	if len(env) > 0 {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// On Windows, retry through cmd.exe when the executable is not found.
	// The entire command line goes after /C as one string so exec does
	// not add extra quoting around individual arguments.
	if err != nil && runtime.GOOS == "windows" && isExecNotFound(err) {
		stdout.Reset()
		stderr.Reset()
		cmdLine := command
		for _, a := range args {
			cmdLine += " " + a
		}
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", cmdLine)
		if len(env) > 0 {
			cmd.Env = env
		}
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	}

	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// isExecNotFound returns true when the error indicates the executable was not found.
func isExecNotFound(err error) bool {
	if err == exec.ErrNotFound {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

// DryRunExecutor records each invocation instead of running it and
// serves canned results keyed by the command line.
type DryRunExecutor struct {
	mu       sync.Mutex
	Commands []string
	Results  map[string]*CommandResult
}

// Execute records the command line and returns the canned result for
// it, or an empty success when none is registered.
func (d *DryRunExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error) {
	line := command
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}

	d.mu.Lock()
	d.Commands = append(d.Commands, line)
	result := d.Results[line]
	d.mu.Unlock()

	if result != nil {
		return result, nil
	}
	return &CommandResult{}, nil
}
