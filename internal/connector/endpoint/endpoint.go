// Package endpoint describes what a concrete shop or marketplace
// integration hands to the connector runtime.
package endpoint

import (
	"context"

	"github.com/akyaiy/GoSally-connector/internal/connector/auth"
	"github.com/akyaiy/GoSally-connector/internal/connector/controller"
	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/akyaiy/GoSally-connector/internal/connector/settings"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
)

// Connector is implemented by every endpoint.
type Connector interface {
	// Initialize runs once per request after the session and settings are
	// ready and before any controller is touched.
	Initialize(ctx context.Context, cfg *settings.Store) error
	// ControllerNamespace names the endpoint in logs and diagnostics.
	ControllerNamespace() string
	Controllers() *controller.Registry
	Models() *model.Registry
	PrimaryKeyMapper() linker.PrimaryKeyMapper
	TokenValidator() auth.TokenValidator
}

// Request is what reaches an endpoint controller after decoding and linking.
type Request struct {
	Controller string
	Action     rpc.Action
	// Models holds the decoded push/delete params.
	Models []model.DataModel
	// Filter holds the decoded pull/statistic params.
	Filter *model.QueryFilter
}

// Response wraps a controller result. Result is a []model.DataModel for push,
// pull and delete.
type Response struct {
	Result any
}

// RequestHandler endpoints take over dispatch for the requests they accept.
type RequestHandler interface {
	HandleRequest(ctx context.Context, req *Request) (*Response, bool, error)
}

// BeforeHandler endpoints see every endpoint request right before dispatch.
type BeforeHandler interface {
	BeforeHandle(ctx context.Context, req *Request) error
}

// ChecksumProvider endpoints support change detection.
type ChecksumProvider interface {
	ChecksumLoader() linker.ChecksumLoader
}

type Identifier = controller.Identifier
