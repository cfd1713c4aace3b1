package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/wfengine/internal/catalog"
	"github.com/specialistvlad/wfengine/internal/ctxlog"
)

// loadCatalog reads the node catalog from path, or the builtin one when no
// path is configured.
func loadCatalog(ctx context.Context, path string) (*catalog.Catalog, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading node catalog...", "catalog_path", path)

	cat, err := catalog.LoadDir(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	source := path
	if source == "" {
		source = "builtin"
	}
	logger.Info("📚 Node catalog loaded.", "source", source, "factories", cat.Len())
	return cat, nil
}
