package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/auth"
	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/connector/linker"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/akyaiy/GoSally-connector/internal/server/session"
)

const DefaultAuthDelay = 2 * time.Second

// Identifier is implemented by endpoints that report their platform in
// core.connector.init.
type Identifier interface {
	Identify(ctx context.Context) model.ConnectorIdentification
}

type CoreOptions struct {
	Sessions    session.ManagerContract
	Validator   auth.TokenValidator
	Mapper      linker.PrimaryKeyMapper
	Controllers *Registry
	Identifier  Identifier
	// FeaturesFile overrides the derived feature list when it exists.
	FeaturesFile   string
	AuthDelay      time.Duration
	MaxUploadBytes int64
	Log            *slog.Logger
}

// Core serves the core.connector.* methods.
type Core struct {
	o CoreOptions
}

func NewCore(o CoreOptions) *Core {
	if o.AuthDelay < 0 {
		o.AuthDelay = 0
	}
	return &Core{o: o}
}

func (c *Core) Handle(ctx context.Context, action rpc.Action, params []byte) (any, error) {
	switch action {
	case rpc.ActionAuth:
		return c.auth(ctx, params)
	case rpc.ActionInit:
		return c.init(ctx)
	case rpc.ActionFeatures:
		return c.features()
	case rpc.ActionAck:
		return c.ack(ctx, params)
	}
	return nil, fault.Malformed(fmt.Errorf("%w: core action %q", rpc.ErrInvalidMethod, action))
}

func (c *Core) auth(ctx context.Context, params []byte) (any, error) {
	var req model.AuthRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fault.Application("cannot decode auth request", err)
		}
	}

	ok := false
	if req.Token != "" && c.o.Validator != nil {
		var err error
		ok, err = c.o.Validator.Validate(ctx, req.Token)
		if err != nil {
			return nil, fault.Application("token validation failed", err)
		}
	}
	if !ok {
		c.o.Log.Warn("authentication failed")
		// the delay holds even when the client has gone away
		time.Sleep(c.o.AuthDelay)
		return nil, fault.AuthFailed()
	}

	s, found := session.FromContext(ctx)
	if !found {
		return nil, fault.NoSessionContext()
	}
	if err := c.o.Sessions.Activate(ctx, s, req.Token); err != nil {
		return nil, fault.Application("cannot persist session", err)
	}
	c.o.Log.Info("session authenticated", slog.String("session-id", s.ID))
	return &model.AuthResult{SessionID: s.ID, Lifetime: int64(s.Lifetime / time.Second)}, nil
}

func (c *Core) init(ctx context.Context) (any, error) {
	var id model.ConnectorIdentification
	if c.o.Identifier != nil {
		id = c.o.Identifier.Identify(ctx)
	}
	id.ProtocolVersion = rpc.ProtocolVersion
	id.ServerInfo = model.ServerInfo{
		Runtime:        runtime.Version(),
		OS:             runtime.GOOS,
		MaxUploadBytes: c.o.MaxUploadBytes,
	}
	return &id, nil
}

func (c *Core) features() (any, error) {
	if c.o.FeaturesFile != "" {
		data, err := os.ReadFile(c.o.FeaturesFile)
		switch {
		case err == nil:
			if !json.Valid(data) {
				return nil, fault.Application(fmt.Sprintf("%s is not valid JSON", c.o.FeaturesFile), nil)
			}
			return json.RawMessage(data), nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fault.Application("cannot read features file", err)
		}
	}
	if c.o.Controllers == nil {
		return &model.Features{Entities: map[string]model.Feature{}, Flags: map[string]bool{}}, nil
	}
	return c.o.Controllers.Features(), nil
}

func (c *Core) ack(ctx context.Context, params []byte) (any, error) {
	var ack model.Ack
	if len(params) > 0 {
		if err := json.Unmarshal(params, &ack); err != nil {
			return nil, fault.Application("cannot decode ack", err)
		}
	}
	if c.o.Mapper == nil {
		return true, nil
	}

	var saved int
	for modelType, ids := range ack.Identities {
		for _, id := range ids {
			if !id.HasEndpoint() || !id.HasHost() {
				continue
			}
			if err := c.o.Mapper.Save(ctx, modelType, id.Endpoint, id.Host); err != nil {
				return nil, fault.Linker(fmt.Sprintf("cannot ack %s identity %s", modelType, id), err)
			}
			saved++
		}
	}
	c.o.Log.Debug("identities acknowledged", slog.Int("count", saved))
	return true, nil
}
