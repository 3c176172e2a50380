// Package linker reconciles model identities and checksums with the stores
// that remember them across requests.
package linker

import (
	"context"
	"errors"
)

var (
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrConsistency means a link would map one id to two partners.
	ErrConsistency = errors.New("identity mapping is not a bijection")
)

// Link is one persisted host/endpoint pair.
type Link struct {
	ModelType  string `json:"modelType"`
	HostID     int64  `json:"hostId"`
	EndpointID string `json:"endpointId"`
}

// PrimaryKeyMapper is the store behind the identity linker. Implementations
// must be safe for concurrent use across processes.
type PrimaryKeyMapper interface {
	HostID(ctx context.Context, modelType, endpointID string) (int64, bool, error)
	EndpointID(ctx context.Context, modelType string, hostID int64) (string, bool, error)
	// Save stores a pair. Saving an existing pair is a no-op; a pair that
	// conflicts with a stored one fails with ErrConsistency.
	Save(ctx context.Context, modelType, endpointID string, hostID int64) error
	// Allocate returns the host id linked to endpointID and creates one when
	// there is none. Concurrent calls for the same endpoint id return the same host id.
	Allocate(ctx context.Context, modelType, endpointID string) (int64, error)
	Delete(ctx context.Context, modelType, endpointID string, hostID int64) error
	// Clear drops all links of a model type, or every link when modelType is empty.
	Clear(ctx context.Context, modelType string) (int64, error)
	Links(ctx context.Context, modelType string) ([]Link, error)
}

// ChecksumLoader is the store behind the checksum linker.
type ChecksumLoader interface {
	Read(ctx context.Context, modelType, endpointID string) (string, error)
	Write(ctx context.Context, modelType, endpointID, checksum string) error
	Delete(ctx context.Context, modelType, endpointID string) error
}
