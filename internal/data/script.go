package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ScriptOptions configures the script-module provider.
type ScriptOptions struct {
	// Node is the interpreter binary; looked up on PATH when not absolute.
	Node string
	// Timeout bounds a single module evaluation. Zero means no bound.
	Timeout time.Duration
}

// ErrNoInterpreter is returned when the configured interpreter cannot be found.
var ErrNoInterpreter = errors.New("script interpreter not found")

// The module exports function(callback); callback(err, data) either fails
// the evaluation or prints data as JSON. Every resolve runs in a fresh
// process, so the module is always evaluated from the current file content.
const scriptBootstrap = `
const mod = require(require('path').resolve(process.argv[1]));
const fn = typeof mod === 'function' ? mod : mod && mod.default;
if (typeof fn !== 'function') {
  process.stderr.write('module does not export a function');
  process.exit(2);
}
fn(function (err, data) {
  if (err) {
    process.stderr.write(String((err && err.message) || err));
    process.exit(1);
  }
  process.stdout.write(JSON.stringify(data === undefined ? {} : data));
});
`

// ScriptProvider evaluates a data module with an external interpreter.
type ScriptProvider struct {
	opts ScriptOptions
}

func NewScriptProvider(opts ScriptOptions) *ScriptProvider {
	if opts.Node == "" {
		opts.Node = "node"
	}
	return &ScriptProvider{opts: opts}
}

func (s *ScriptProvider) Resolve(ctx context.Context, path string) (any, error) {
	bin, err := exec.LookPath(s.opts.Node)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoInterpreter, s.opts.Node)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-e", scriptBootstrap, abs)
	cmd.Dir = filepath.Dir(abs)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("run data module: %w", err)
		}
		return nil, fmt.Errorf("run data module: %w: %s", err, msg)
	}

	var v any
	if err := json.Unmarshal(stdout.Bytes(), &v); err != nil {
		return nil, fmt.Errorf("decode data module output: %w", err)
	}
	return v, nil
}
