package mapper

import "github.com/akyaiy/GoSally-connector/internal/connector/linker"

// Store is a link store that also keeps checksums.
type Store interface {
	linker.PrimaryKeyMapper
	Checksums() linker.ChecksumLoader
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)
