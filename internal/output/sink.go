// internal/output/sink.go
package output

import (
	"context"
	"fmt"

	"github.com/valpere/CatalogHarvest/internal/config"
)

// OpenSink connects the sink described by cfg.
func OpenSink(ctx context.Context, cfg config.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case "mongodb":
		sink, err := NewMongoSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case "sql":
		sink, err := NewSQLSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %q", cfg.Type)
	}
}
