package linker

import (
	"context"

	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/connector/model"
)

// ChecksumLinker attaches the last known checksum to models. It never drops
// unchanged models itself; that decision belongs to the endpoint controller.
type ChecksumLinker struct {
	loader ChecksumLoader
}

// NewChecksumLinker accepts a nil loader for endpoints without checksum support.
func NewChecksumLinker(loader ChecksumLoader) *ChecksumLinker {
	return &ChecksumLinker{loader: loader}
}

func (c *ChecksumLinker) Enabled() bool {
	return c != nil && c.loader != nil
}

// Link loads the stored checksum into the model's Known field.
func (c *ChecksumLinker) Link(ctx context.Context, m model.DataModel) error {
	cm, id, ok := c.target(m)
	if !ok {
		return nil
	}
	state := cm.ChecksumState()
	if !id.HasEndpoint() {
		state.Known = ""
		return nil
	}
	known, err := c.loader.Read(ctx, m.ModelType(), id.Endpoint)
	if err != nil {
		return fault.Linker("cannot read checksum", err)
	}
	state.Known = known
	return nil
}

// Refresh stores the model's current checksum after a successful push.
func (c *ChecksumLinker) Refresh(ctx context.Context, m model.DataModel) error {
	cm, id, ok := c.target(m)
	if !ok {
		return nil
	}
	state := cm.ChecksumState()
	if !id.HasEndpoint() || state.Value == "" {
		return nil
	}
	if err := c.loader.Write(ctx, m.ModelType(), id.Endpoint, state.Value); err != nil {
		return fault.Linker("cannot write checksum", err)
	}
	state.Known = state.Value
	return nil
}

// Forget drops the stored checksum of a deleted model.
func (c *ChecksumLinker) Forget(ctx context.Context, m model.DataModel) error {
	_, id, ok := c.target(m)
	if !ok || !id.HasEndpoint() {
		return nil
	}
	if err := c.loader.Delete(ctx, m.ModelType(), id.Endpoint); err != nil {
		return fault.Linker("cannot delete checksum", err)
	}
	return nil
}

func (c *ChecksumLinker) target(m model.DataModel) (model.Checksummed, *model.Identity, bool) {
	if !c.Enabled() {
		return nil, nil, false
	}
	cm, ok := m.(model.Checksummed)
	if !ok {
		return nil, nil, false
	}
	id := cm.PrimaryIdentity()
	if id == nil {
		return nil, nil, false
	}
	return cm, id, true
}
