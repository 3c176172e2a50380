package gateway

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// DefaultFormMemory is the part of a multipart form kept in memory before
// the rest spills to disk.
const DefaultFormMemory = 32 << 20

// GatewayServerInit structure only for initialization of the gateway.
type GatewayServerInit struct {
	Log *slog.Logger
	App Handler
	// TempDir is where uploaded archives are stored; empty means the system temp dir.
	TempDir        string
	MaxUploadBytes int64
}

func InitGateway(o *GatewayServerInit) *GatewayServer {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	return &GatewayServer{
		app:       o.App,
		log:       log,
		tempDir:   o.TempDir,
		maxUpload: o.MaxUploadBytes,
		memory:    DefaultFormMemory,
	}
}

// Mount registers the gateway on route, accepting POST only.
func (gs *GatewayServer) Mount(r chi.Router, route string) {
	r.Post(route, gs.Handle)
}
