package gateway

import (
	"context"
	"log/slog"

	"github.com/akyaiy/GoSally-connector/internal/connector/application"
)

// Form and header names the host uses to talk to the connector.
const (
	FieldPacket   = "jtlrpc"
	FieldSession  = "jtlauth"
	HeaderSession = "X-Jtl-Session"
)

// Handler runs one decoded call and returns the encoded response packet.
// *application.Application implements it.
type Handler interface {
	Handle(ctx context.Context, call *application.Call) []byte
}

// GatewayServer turns host HTTP requests into connector calls.
type GatewayServer struct {
	app Handler
	log *slog.Logger

	// tempDir receives uploaded archives; the call removes them when it ends.
	tempDir   string
	maxUpload int64
	memory    int64
}
