// Package app wires the toolchain frontend together: logger, build session,
// resolver, evaluator, and the worker pool that evaluates independent
// top-level files concurrently against one shared session.
package app

import (
	"io"
	"log/slog"

	"github.com/zenhdl/zenit/internal/eval"
	"github.com/zenhdl/zenit/internal/resolver"
	"github.com/zenhdl/zenit/internal/session"
	"github.com/zenhdl/zenit/internal/vfs"
)

// Config holds everything an App needs to run one build.
type Config struct {
	// Path is a .zen file or a directory scanned for top-level .zen files.
	Path string
	// VendorRoot resolves "@pkg/..." load paths; empty disables them.
	VendorRoot string
	LogFormat  string
	LogLevel   string
	// Workers bounds concurrent top-level evaluations.
	Workers int
	// Describe prints each module's parameter signature as JSON instead of
	// its netlist summary.
	Describe bool
}

// App encapsulates the frontend's dependencies and lifecycle. Each App owns
// one build session, so two Apps in one process never share module caches.
type App struct {
	outW      io.Writer
	errW      io.Writer
	logger    *slog.Logger
	config    *Config
	session   *session.Session
	evaluator *eval.Evaluator
}

// New constructs a fully wired App with an isolated logger and session.
func New(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)

	files := vfs.NewOS()
	res := resolver.NewRelative(files, cfg.VendorRoot)
	sess := session.New()

	return &App{
		outW:      outW,
		errW:      errW,
		logger:    logger,
		config:    cfg,
		session:   sess,
		evaluator: eval.New(sess, res, files),
	}
}

// Session returns the app's build session. This is primarily for testing.
func (a *App) Session() *session.Session {
	return a.session
}
