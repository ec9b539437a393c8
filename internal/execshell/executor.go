// Package execshell runs external commands. Every shell-out in branchsnap
// goes through CommandExecutor so services stay testable with fakes.
package execshell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
	ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
	ExecuteWithInput(ctx context.Context, env []string, inputPath string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// ExecuteWithEnv runs a command with additional environment variables.
func (e *DefaultExecutor) ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// ExecuteWithInput runs a command with its stdin connected to the given file.
func (e *DefaultExecutor) ExecuteWithInput(ctx context.Context, env []string, inputPath string, name string, args ...string) ([]byte, error) {
	input, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer func() { _ = input.Close() }()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = input
	return cmd.CombinedOutput()
}
