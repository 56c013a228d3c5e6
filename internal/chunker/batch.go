package chunker

import (
	"context"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itsmostafa/hierchunk/internal/index"
)

// IndexAll builds or reuses the index of every path using at most
// parallelism workers (GOMAXPROCS when not positive). Duplicate paths are
// indexed once. Results follow the order of first appearance. The first
// failure cancels the remaining work and is returned.
func (c *Chunker) IndexAll(ctx context.Context, paths []string, parallelism int) ([]*index.Index, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	var unique []string
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if !seen[abs] {
			seen[abs] = true
			unique = append(unique, abs)
		}
	}

	out := make([]*index.Index, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, p := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			idx, err := c.BuildIndex(gctx, p)
			if err != nil {
				return err
			}
			out[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Info("indexed", zap.Int("files", len(out)), zap.Int("workers", parallelism))
	return out, nil
}
