package config

// NodeVersion is the version of the node. It can be set by the build system or manually.
// If not set, it will return "v0.0.0-none" by default
var NodeVersion string

// EnvPrefix prefixes every environment variable the node reads.
const EnvPrefix = "CONNECTOR"

// Link store backends.
const (
	LinkStoreSQLite   = "sqlite"
	LinkStorePostgres = "postgres"
)

// Special values of log.output.
const (
	OutStdout = "%1%"
	OutStderr = "%2%"
)

var MetaDir string = ".meta"

func init() {
	if NodeVersion == "" {
		NodeVersion = "v0.0.0-none"
	}
}
