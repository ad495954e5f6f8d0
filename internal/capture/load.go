package capture

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// LoadAll imports several independent captures concurrently. The result
// order matches paths. The first failure cancels the remaining imports.
func LoadAll(ctx context.Context, paths []string, opts Options) ([]*Capture, error) {
	captures := make([]*Capture, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			c, err := Load(path, opts)
			if err != nil {
				return err
			}
			captures[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return captures, nil
}
