package sink

import (
	"context"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// Sink accepts the engine's output as flat records. Implementations own
// schema creation and persistence; the engine knows nothing about them.
type Sink interface {
	// Init prepares the destination (DDL, file header). Called once before
	// the first Write.
	Init(ctx context.Context) error
	Write(ctx context.Context, records []model.FlatRecord) error
	Close() error
}
