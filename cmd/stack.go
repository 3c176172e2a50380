package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/akyaiy/GoSally-connector/hooks"
	"github.com/akyaiy/GoSally-connector/internal/engine/app"
)

// openStack loads the configuration and opens the stores for the
// maintenance commands.
func openStack(ctx context.Context) (*hooks.Stack, error) {
	x := &app.AppX{
		Config: hooks.Compositor,
		Log:    log.Default(),
		Level:  new(slog.LevelVar),
	}
	if err := hooks.LoadConfig(x); err != nil {
		return nil, err
	}
	x.SLog = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: x.Level}))
	return hooks.OpenStack(ctx, x.Config.Conf, hooks.DataDir(x), x.SLog)
}
