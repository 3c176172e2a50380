// Package corestate keeps the meta-information the node needs from start
// to shutdown: its persistent id, its stage and its runtime directory.
package corestate

type Stage string

const (
	StageNotReady Stage = "init"
	StagePreInit  Stage = "pre-init"
	StagePostInit Stage = "post-init"
	StageReady    Stage = "event"
)
