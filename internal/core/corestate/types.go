package corestate

import "github.com/akyaiy/GoSally-connector/internal/core/run_manager"

type CoreState struct {
	NodeID string

	StartTimestampUnix int64

	NodeBinName string
	NodeVersion string

	Stage Stage

	// DataDir holds the databases, the connector settings and the meta dir.
	DataDir string
	MetaDir string
	Run     *run_manager.RunManager
}
