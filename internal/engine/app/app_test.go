package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/akyaiy/GoSally-connector/internal/core/corestate"
	"github.com/stretchr/testify/assert"
)

func newTestApp() (*App, *bytes.Buffer, *int) {
	a := New()
	var buf bytes.Buffer
	a.AppX.Log = log.New(&buf, "", 0)
	code := -1
	a.exit = func(c int) { code = c }
	return a, &buf, &code
}

func TestApp_Run(t *testing.T) {
	tests := []struct {
		name     string
		run      func(ctx context.Context, cs *corestate.CoreState, x *AppX) error
		wantCode int
	}{
		{
			name:     "clean",
			run:      func(context.Context, *corestate.CoreState, *AppX) error { return nil },
			wantCode: -1,
		},
		{
			name:     "error",
			run:      func(context.Context, *corestate.CoreState, *AppX) error { return errors.New("boom") },
			wantCode: 1,
		},
		{
			name:     "panic",
			run:      func(context.Context, *corestate.CoreState, *AppX) error { panic("boom") },
			wantCode: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, code := newTestApp()
			var order []string
			fallbacks := 0
			a.InitialHooks(
				func(cs *corestate.CoreState, _ *AppX) { order = append(order, "first"); cs.Stage = corestate.StagePreInit },
				func(cs *corestate.CoreState, _ *AppX) { order = append(order, "second"); cs.Stage = corestate.StageReady },
			)
			a.Fallback(func(context.Context, *corestate.CoreState, *AppX) { fallbacks++ })

			a.Run(tt.run)
			a.CallFallback(context.Background())

			assert.Equal(t, []string{"first", "second"}, order)
			assert.Equal(t, corestate.StageReady, a.Corestate.Stage)
			assert.Equal(t, tt.wantCode, *code)
			assert.Equal(t, 1, fallbacks)
		})
	}
}
