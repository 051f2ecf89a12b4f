// Package compose implements the ComposeRunner: materializing a stack's
// compose spec to disk and invoking the external composition tool.
package compose

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/theinhumaneme/hikari/internal/catalog"
)

// Runner invokes an external container-composition binary (by default
// "docker compose") against a single compose file. It never inspects or
// diffs runtime state itself — §4.1 keeps it to materialize/pull/up/down.
type Runner struct {
	// Binary is the program to invoke; defaults to "docker". The
	// subcommand "compose" is always the first argument, per spec.md §9's
	// resolved "expose as configuration" note.
	Binary string
	Log    *slog.Logger
}

// New creates a Runner. binary defaults to "docker" when empty.
func New(binary string, log *slog.Logger) *Runner {
	if binary == "" {
		binary = "docker"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Binary: binary, Log: log}
}

// Materialize creates homeDir if absent, serializes spec to YAML, and
// overwrites homeDir/filename, returning that path.
func (r *Runner) Materialize(homeDir, filename string, spec catalog.ComposeSpec) (string, error) {
	if err := os.MkdirAll(homeDir, 0755); err != nil {
		return "", fmt.Errorf("materialize %s: creating home directory: %w", homeDir, err)
	}
	path := homeDir + "/" + filename
	if err := writeComposeFile(path, spec); err != nil {
		return "", fmt.Errorf("materialize %s: %w", path, err)
	}
	return path, nil
}

// Pull runs `compose -f <path> pull`.
func (r *Runner) Pull(ctx context.Context, path string) bool { return r.run(ctx, path, "pull") }

// Up runs `compose -f <path> up -d`.
func (r *Runner) Up(ctx context.Context, path string) bool { return r.run(ctx, path, "up", "-d") }

// Down runs `compose -f <path> down`.
func (r *Runner) Down(ctx context.Context, path string) bool { return r.run(ctx, path, "down") }

// run spawns `<Binary> compose -f <path> <op...>` with null stdin and piped
// stdout/stderr, streaming each line to the log (stdout at info, stderr at
// error), and returns true iff the process exits successfully.
func (r *Runner) run(ctx context.Context, path string, op ...string) bool {
	args := append([]string{"compose", "-f", path}, op...)
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.Log.Error("compose spawn failed", "path", path, "op", op, "error", err)
		return false
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.Log.Error("compose spawn failed", "path", path, "op", op, "error", err)
		return false
	}

	if err := cmd.Start(); err != nil {
		r.Log.Error("compose spawn failed", "path", path, "op", op, "error", err)
		return false
	}

	done := make(chan struct{}, 2)
	go streamLines(stdout, done, func(line string) { r.Log.Info("compose", "path", path, "op", op, "line", line) })
	go streamLines(stderr, done, func(line string) { r.Log.Error("compose", "path", path, "op", op, "line", line) })
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		r.Log.Error("compose exited non-zero", "path", path, "op", op, "error", err)
		return false
	}
	return true
}

func streamLines(r io.Reader, done chan<- struct{}, emit func(string)) {
	defer func() { done <- struct{}{} }()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}
