// Package command runs external conversion tools over document bytes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// ErrToolNotFound is returned when the configured tool is not on PATH.
var ErrToolNotFound = errors.New("conversion tool not found")

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command. Stderr is folded into the error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// CheckAvailable verifies a tool can be found on PATH.
func CheckAvailable(tool string) error {
	if tool == "" {
		return fmt.Errorf("%w: no tool configured", ErrToolNotFound)
	}
	if _, err := exec.LookPath(tool); err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, tool)
	}
	return nil
}

// Tool wraps a configured command line. The document bytes are written to
// a temp file whose path is substituted for "{file}" in Args, or appended
// when no placeholder is present.
type Tool struct {
	Name   string
	Args   []string
	Runner Runner
}

// RunOnBytes writes data to a temp file with the given extension and runs
// the tool over it. A failing tool is a permanent error since retrying the
// same bytes gives the same result. Cancellation passes through.
func (t *Tool) RunOnBytes(ctx context.Context, data []byte, ext string) ([]byte, error) {
	runner := t.Runner
	if runner == nil {
		runner = ExecRunner{}
		if err := CheckAvailable(t.Name); err != nil {
			return nil, domain.Permanent(err)
		}
	}

	dir, err := os.MkdirTemp("", "ragd-extract-*")
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return nil, domain.Transient(fmt.Errorf("write temp file: %w", err))
	}

	out, err := runner.Run(ctx, t.Name, t.args(file)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.Permanent(fmt.Errorf("%s failed: %w", t.Name, err))
	}
	return out, nil
}

func (t *Tool) args(file string) []string {
	args := make([]string, 0, len(t.Args)+1)
	replaced := false
	for _, a := range t.Args {
		if strings.Contains(a, "{file}") {
			a = strings.ReplaceAll(a, "{file}", file)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, file)
	}
	return args
}
