package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/loader"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// Load discovers the sources in dataDir, selects the freshest valid one and
// reads a complete raw snapshot from it.
func Load(ctx context.Context, dataDir string) (model.RawSnapshot, DataSource, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		DataDir:                dataDir,
		ValidateAfterDiscovery: true,
		Logger:                 func(msg string) { debug.Log("datasource: %s", msg) },
	})
	if err != nil {
		return model.RawSnapshot{}, DataSource{}, err
	}
	if len(sources) == 0 {
		return model.RawSnapshot{}, DataSource{}, ErrNoSource
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return model.RawSnapshot{}, DataSource{}, err
	}
	raw, err := LoadFromSource(ctx, best)
	if err != nil {
		return model.RawSnapshot{}, best, err
	}
	return raw, best, nil
}

// LoadSnapshot is Load followed by normalization.
func LoadSnapshot(ctx context.Context, dataDir string) (model.Snapshot, DataSource, error) {
	raw, src, err := Load(ctx, dataDir)
	if err != nil {
		return model.Snapshot{}, src, err
	}
	return model.Normalize(raw), src, nil
}

// LoadFromSource reads a raw snapshot from a specific DataSource, dispatching
// to the appropriate reader based on source type.
func LoadFromSource(ctx context.Context, source DataSource) (model.RawSnapshot, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return model.RawSnapshot{}, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadSnapshot(ctx)

	case SourceTypeCSV:
		return loader.LoadDir(ctx, source.Path, loader.ParseOptions{})

	default:
		return model.RawSnapshot{}, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
