package cli

import (
	"context"
	"path/filepath"
	"slices"
	"sort"

	"github.com/alitto/pond"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/klothoplatform/infratopo/pkg/topology"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type ValidationResult struct {
	Path string
	Err  error
}

// ExpandProfiles matches each pattern against fs. Base profile names are passed through as is.
func ExpandProfiles(fs afero.Fs, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	for _, pattern := range patterns {
		if slices.Contains(config.BaseProfiles, pattern) {
			add(pattern)
			continue
		}
		base, pat := doublestar.SplitPattern(filepath.ToSlash(pattern))
		root := fs
		if base != "." {
			root = afero.NewBasePathFs(fs, base)
		}
		matches, err := doublestar.Glob(afero.NewIOFS(root), pat)
		if err != nil {
			return nil, errors.Wrapf(err, "bad profile pattern %s", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no profiles match %s", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if base != "." {
				m = filepath.Join(base, m)
			}
			add(m)
		}
	}
	return paths, nil
}

// ValidateProfiles assembles every profile in paths on a pool of workers. Results are in the order of paths.
func ValidateProfiles(ctx context.Context, fs afero.Fs, paths []string, env map[string]string, workers int) []ValidationResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]ValidationResult, len(paths))
	pool := pond.New(workers, 1000, pond.Strategy(pond.Lazy()))
	for i, path := range paths {
		i, path := i, path
		pool.Submit(func() {
			results[i] = ValidationResult{Path: path, Err: validateProfile(ctx, fs, path, env)}
		})
	}
	pool.StopAndWait()
	return results
}

func validateProfile(ctx context.Context, fs afero.Fs, path string, env map[string]string) error {
	p, err := ResolveProfile(fs, path)
	if err != nil {
		return err
	}
	topo, err := topology.Assemble(ctx, p, env)
	if err != nil {
		return err
	}
	zap.L().Debug("profile is valid",
		zap.String("path", path),
		zap.Int("resources", topo.Registry.Len()),
	)
	return nil
}
