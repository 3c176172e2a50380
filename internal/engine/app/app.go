// Package app drives the node lifecycle: ordered init hooks, one run hook
// bound to the process signals, and a fallback that runs exactly once on
// shutdown or panic.
package app

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akyaiy/GoSally-connector/internal/core/corestate"
	"github.com/akyaiy/GoSally-connector/internal/engine/config"
)

type AppContract interface {
	InitialHooks(fn ...func(cs *corestate.CoreState, x *AppX))
	Run(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX) error)
	Fallback(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX))

	CallFallback(ctx context.Context)
}

type App struct {
	initHooks []func(cs *corestate.CoreState, x *AppX)
	runHook   func(ctx context.Context, cs *corestate.CoreState, x *AppX) error
	fallback  func(ctx context.Context, cs *corestate.CoreState, x *AppX)

	Corestate *corestate.CoreState
	AppX      *AppX

	fallbackOnce sync.Once
	// exit is os.Exit outside of tests.
	exit func(code int)
}

type AppX struct {
	Config *config.Compositor
	Log    *log.Logger
	SLog   *slog.Logger
	// Level backs SLog; the connector raises it per request.
	Level *slog.LevelVar
	// LogCloser releases the log file, if any.
	LogCloser io.Closer
}

func New() *App {
	return &App{
		AppX: &AppX{
			Log:   log.Default(),
			Level: new(slog.LevelVar),
		},
		Corestate: &corestate.CoreState{},
		exit:      os.Exit,
	}
}

func (a *App) InitialHooks(fn ...func(cs *corestate.CoreState, x *AppX)) {
	a.initHooks = append(a.initHooks, fn...)
}

func (a *App) Fallback(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX)) {
	a.fallback = fn
}

func (a *App) Run(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX) error) {
	a.runHook = fn

	for _, hook := range a.initHooks {
		hook(a.Corestate, a.AppX)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			a.AppX.Log.Printf("PANIC recovered: %v", r)
			a.CallFallback(ctx)
			a.exit(1)
		}
	}()

	var runErr error
	if a.runHook != nil {
		runErr = a.runHook(ctx, a.Corestate, a.AppX)
	}

	if runErr != nil {
		a.AppX.Log.Printf("fatal in Run: %v", runErr)
		a.CallFallback(ctx)
		a.exit(1)
	}
}

func (a *App) CallFallback(ctx context.Context) {
	a.fallbackOnce.Do(func() {
		if a.fallback != nil {
			a.fallback(ctx, a.Corestate, a.AppX)
		}
	})
}
