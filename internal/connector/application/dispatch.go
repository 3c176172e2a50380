package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akyaiy/GoSally-connector/internal/connector/attachment"
	"github.com/akyaiy/GoSally-connector/internal/connector/controller"
	"github.com/akyaiy/GoSally-connector/internal/connector/endpoint"
	"github.com/akyaiy/GoSally-connector/internal/connector/event"
	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
	"github.com/akyaiy/GoSally-connector/internal/core/utils"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
)

func (a *Application) executeEndpoint(ctx context.Context, st *state, params []byte) (any, error) {
	req, err := a.buildRequest(ctx, st, params)
	if err != nil {
		return nil, err
	}

	if err := st.bus.Fire(ctx, &event.Event{Scope: event.ScopeHandle, Action: string(req.Action), Phase: event.Before, Payload: req}); err != nil {
		return nil, hookError(err)
	}
	if bh, ok := a.o.Endpoint.(endpoint.BeforeHandler); ok {
		if err := bh.BeforeHandle(ctx, req); err != nil {
			return nil, fault.Controller(req.Controller, err)
		}
	}

	resp, err := a.handle(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := st.bus.Fire(ctx, &event.Event{Scope: event.ScopeHandle, Action: string(req.Action), Phase: event.After, Payload: resp}); err != nil {
		return nil, hookError(err)
	}

	return a.linkResults(ctx, st, req, resp)
}

// buildRequest decodes the params and, for push and delete, links every
// model before the controller sees it.
func (a *Application) buildRequest(ctx context.Context, st *state, params []byte) (*endpoint.Request, error) {
	req := &endpoint.Request{
		Controller: rpc.BuildController(st.method.Controller),
		Action:     st.method.Action,
	}

	if !st.method.Modifies() {
		filter, err := model.DecodeQueryFilter(params)
		if err != nil {
			return nil, fault.Application("cannot decode query filter", err)
		}
		req.Filter = filter
		err = st.bus.Fire(ctx, &event.Event{Scope: req.Controller, Action: string(req.Action), Phase: event.Before, Payload: filter})
		if err != nil {
			return nil, hookError(err)
		}
		return req, nil
	}

	models, err := a.o.Endpoint.Models().DecodeList(req.Controller, params)
	if err != nil {
		return nil, fault.Application(fmt.Sprintf("cannot decode %s params", req.Controller), err)
	}
	isDelete := req.Action == rpc.ActionDelete
	for _, m := range models {
		if err := st.links.LinkModel(ctx, m, isDelete); err != nil {
			return nil, err
		}
		if err := st.sums.Link(ctx, m); err != nil {
			return nil, err
		}
	}
	req.Models = models

	if strings.EqualFold(req.Controller, model.TypeImage) && req.Action == rpc.ActionPush {
		images := make([]attachment.Image, 0, len(models))
		for _, m := range models {
			if img, ok := m.(attachment.Image); ok {
				images = append(images, img)
			}
		}
		if err := a.o.Resolver.Resolve(ctx, st.scope, st.call.Archive, images); err != nil {
			return nil, err
		}
	}

	if err := st.bus.Dispatch(ctx, models, string(req.Action), event.Before); err != nil {
		return nil, hookError(err)
	}
	return req, nil
}

func (a *Application) handle(ctx context.Context, req *endpoint.Request) (*endpoint.Response, error) {
	if rh, ok := a.o.Endpoint.(endpoint.RequestHandler); ok {
		resp, handled, err := rh.HandleRequest(ctx, req)
		if err != nil {
			return nil, fault.Controller(req.Controller, err)
		}
		if handled {
			if resp == nil {
				resp = &endpoint.Response{}
			}
			return resp, nil
		}
	}
	return a.dispatch(ctx, req)
}

func (a *Application) dispatch(ctx context.Context, req *endpoint.Request) (*endpoint.Response, error) {
	ctrl, ok := a.o.Endpoint.Controllers().New(req.Controller)
	if !ok {
		return nil, fault.Application(fmt.Sprintf("controller %s does not exist", req.Controller), nil)
	}
	unsupported := fault.Application(fmt.Sprintf("controller %s does not support %s", req.Controller, req.Action), nil)

	switch req.Action {
	case rpc.ActionPush:
		p, ok := ctrl.(controller.Pusher)
		if !ok {
			return nil, unsupported
		}
		results, err := a.batch(ctx, ctrl, req, p.Push)
		return &endpoint.Response{Result: results}, err

	case rpc.ActionDelete:
		d, ok := ctrl.(controller.Deleter)
		if !ok {
			return nil, unsupported
		}
		results, err := a.batch(ctx, ctrl, req, d.Delete)
		return &endpoint.Response{Result: results}, err

	case rpc.ActionPull:
		p, ok := ctrl.(controller.Puller)
		if !ok {
			return nil, unsupported
		}
		models, err := p.Pull(ctx, req.Filter)
		if err != nil {
			return nil, fault.Controller(req.Controller, err)
		}
		return &endpoint.Response{Result: models}, nil

	case rpc.ActionStatistic:
		s, ok := ctrl.(controller.Statistician)
		if !ok {
			return nil, unsupported
		}
		stat, err := s.Statistic(ctx, req.Filter)
		if err != nil {
			return nil, fault.Controller(req.Controller, err)
		}
		if stat == nil {
			stat = &model.Statistic{}
		}
		if stat.ControllerName == "" {
			stat.ControllerName = snakeCase(req.Controller)
		}
		return &endpoint.Response{Result: stat}, nil
	}
	return nil, unsupported
}

// snakeCase renders a controller name the way hosts spell it in statistics, e.g.
// "ProductPrice" becomes "product_price".
func snakeCase(controllerName string) string {
	var b strings.Builder
	for i, r := range controllerName {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

type modelAction func(ctx context.Context, m model.DataModel) (model.DataModel, error)

// batch runs a push or delete over every model. Transactional controllers
// get one transaction for the batch that is rolled back on the first
// failure, panics included.
func (a *Application) batch(ctx context.Context, ctrl any, req *endpoint.Request, action modelAction) (results []model.DataModel, err error) {
	tx, transactional := ctrl.(controller.Transactional)
	rollback := func() {
		if !transactional {
			return
		}
		if rerr := tx.Rollback(ctx); rerr != nil {
			a.o.Log.Error("rollback failed", slog.String("controller", req.Controller), slog.String("err", rerr.Error()))
		}
	}

	if transactional {
		if err := tx.BeginTransaction(ctx); err != nil {
			return nil, fault.Controller(req.Controller, err)
		}
	}
	defer utils.CatchPanicWithFallback(func(rec any, stack []byte) {
		a.o.Log.Error("controller panicked", slog.String("controller", req.Controller),
			slog.Any("panic", rec), slog.String("stack", string(stack)))
		rollback()
		results, err = nil, fault.Controller(req.Controller, fmt.Errorf("panic: %v", rec))
	})

	results = make([]model.DataModel, 0, len(req.Models))
	for _, m := range req.Models {
		out, err := action(ctx, m)
		if err != nil {
			rollback()
			return nil, fault.Controller(req.Controller, err)
		}
		if out == nil {
			out = m
		}
		results = append(results, out)
	}

	if transactional {
		if err := tx.Commit(ctx); err != nil {
			rollback()
			return nil, fault.Controller(req.Controller, err)
		}
	}
	return results, nil
}

// linkResults attaches identities and checksums to the models a controller
// returned and fires the per-model after events.
func (a *Application) linkResults(ctx context.Context, st *state, req *endpoint.Request, resp *endpoint.Response) (any, error) {
	models, ok := resp.Result.([]model.DataModel)
	if !ok {
		if m, single := resp.Result.(model.DataModel); single {
			models = []model.DataModel{m}
		} else {
			if resp.Result == nil && req.Action == rpc.ActionPull {
				return []model.DataModel{}, nil
			}
			return resp.Result, nil
		}
	}

	for _, m := range models {
		if m == nil {
			continue
		}
		var err error
		switch req.Action {
		case rpc.ActionPush:
			if err = st.links.LinkModel(ctx, m, false); err == nil {
				err = st.sums.Refresh(ctx, m)
			}
		case rpc.ActionDelete:
			if err = st.links.ResolveModel(ctx, m); err == nil {
				if err = st.links.Unlink(ctx, m); err == nil {
					err = st.sums.Forget(ctx, m)
				}
			}
		default:
			if err = st.links.ResolveModel(ctx, m); err == nil {
				err = st.sums.Link(ctx, m)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]model.DataModel, 0, len(models))
	for _, m := range models {
		if m != nil {
			out = append(out, m)
		}
	}
	if err := st.bus.Dispatch(ctx, out, string(req.Action), event.After); err != nil {
		return nil, hookError(err)
	}
	return out, nil
}
