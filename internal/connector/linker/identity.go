package linker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
)

type cacheKey struct {
	modelType string
	endpoint  string
}

// IdentityLinker fills in the missing half of every identity on a model.
// An instance lives for one request.
type IdentityLinker struct {
	mapper PrimaryKeyMapper
	log    *slog.Logger
	hosts  map[cacheKey]int64
}

func NewIdentityLinker(mapper PrimaryKeyMapper, log *slog.Logger) *IdentityLinker {
	return &IdentityLinker{
		mapper: mapper,
		log:    log,
		hosts:  make(map[cacheKey]int64),
	}
}

func (l *IdentityLinker) Mapper() PrimaryKeyMapper {
	return l.mapper
}

// LinkModel links every identity of m. For deletes each non-empty identity
// must already be known. Otherwise known pairs are saved, host-only
// identities get their endpoint id if one is stored and endpoint-only
// identities get a host id, created on first sight.
func (l *IdentityLinker) LinkModel(ctx context.Context, m model.DataModel, isDelete bool) error {
	for _, ref := range m.Identities() {
		if ref.ID == nil || ref.ID.IsEmpty() {
			continue
		}
		var err error
		if isDelete {
			err = l.resolve(ctx, ref, true)
		} else {
			err = l.link(ctx, ref)
		}
		if err != nil {
			return fault.Linker(fmt.Sprintf("cannot link %s identity %s", ref.Type, ref.ID), err)
		}
	}
	return nil
}

// ResolveModel attaches already known identities to a pulled model without
// creating new links.
func (l *IdentityLinker) ResolveModel(ctx context.Context, m model.DataModel) error {
	for _, ref := range m.Identities() {
		if ref.ID == nil || ref.ID.IsEmpty() {
			continue
		}
		if err := l.resolve(ctx, ref, false); err != nil {
			return fault.Linker(fmt.Sprintf("cannot resolve %s identity %s", ref.Type, ref.ID), err)
		}
	}
	return nil
}

// Unlink removes the link of the model's own identity after it was deleted.
func (l *IdentityLinker) Unlink(ctx context.Context, m model.DataModel) error {
	ref, ok := primaryRef(m)
	if !ok || ref.ID.IsEmpty() {
		return nil
	}
	if err := l.mapper.Delete(ctx, ref.Type, ref.ID.Endpoint, ref.ID.Host); err != nil {
		return fault.Linker(fmt.Sprintf("cannot unlink %s identity %s", ref.Type, ref.ID), err)
	}
	delete(l.hosts, cacheKey{ref.Type, ref.ID.Endpoint})
	l.log.Debug("identity unlinked", slog.String("model", ref.Type), slog.String("identity", ref.ID.String()))
	return nil
}

func (l *IdentityLinker) link(ctx context.Context, ref model.IdentityRef) error {
	id := ref.ID
	switch {
	case id.HasEndpoint() && id.HasHost():
		if cached, ok := l.hosts[cacheKey{ref.Type, id.Endpoint}]; ok && cached == id.Host {
			return nil
		}
		if err := l.mapper.Save(ctx, ref.Type, id.Endpoint, id.Host); err != nil {
			return err
		}
		l.hosts[cacheKey{ref.Type, id.Endpoint}] = id.Host

	case id.HasHost():
		endpoint, found, err := l.mapper.EndpointID(ctx, ref.Type, id.Host)
		if err != nil {
			return err
		}
		if found {
			id.Endpoint = endpoint
		}

	default:
		host, ok := l.hosts[cacheKey{ref.Type, id.Endpoint}]
		if !ok {
			var err error
			host, err = l.mapper.Allocate(ctx, ref.Type, id.Endpoint)
			if err != nil {
				return err
			}
			l.hosts[cacheKey{ref.Type, id.Endpoint}] = host
		}
		id.Host = host
	}
	return nil
}

func (l *IdentityLinker) resolve(ctx context.Context, ref model.IdentityRef, strict bool) error {
	id := ref.ID
	if id.HasEndpoint() {
		host, ok := l.hosts[cacheKey{ref.Type, id.Endpoint}]
		if !ok {
			var (
				found bool
				err   error
			)
			host, found, err = l.mapper.HostID(ctx, ref.Type, id.Endpoint)
			if err != nil {
				return err
			}
			if !found {
				if strict {
					return ErrUnknownIdentity
				}
				return nil
			}
			l.hosts[cacheKey{ref.Type, id.Endpoint}] = host
		}
		if id.HasHost() && id.Host != host {
			return ErrConsistency
		}
		id.Host = host
		return nil
	}

	endpoint, found, err := l.mapper.EndpointID(ctx, ref.Type, id.Host)
	if err != nil {
		return err
	}
	if !found {
		if strict {
			return ErrUnknownIdentity
		}
		return nil
	}
	id.Endpoint = endpoint
	return nil
}

// primaryRef returns the model's own identity. Models list it first.
func primaryRef(m model.DataModel) (model.IdentityRef, bool) {
	if p, ok := m.(interface{ PrimaryIdentity() *model.Identity }); ok {
		return model.IdentityRef{Type: m.ModelType(), ID: p.PrimaryIdentity()}, true
	}
	refs := m.Identities()
	if len(refs) == 0 || refs[0].ID == nil {
		return model.IdentityRef{}, false
	}
	return refs[0], true
}
