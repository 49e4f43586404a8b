package cli

import (
	"context"
	"testing"

	"github.com/klothoplatform/infratopo/pkg/config"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/lithammer/dedent"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("profiles/regional", 0755))
	files := map[string]string{
		"profiles/staging.yaml": `
			base: production
			name: staging
			`,
		"profiles/regional/sydney.toml": `
			name = "sydney"
			region = "ap-southeast-2"
			`,
		"profiles/broken.yaml": `
			name: broken
			network:
			  cidr: 10.0.0.0/24
			`,
		"profiles/notes.txt": "not a profile",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(dedent.Dedent(content)), 0644))
	}
	return fs
}

func TestExpandProfiles(t *testing.T) {
	fs := profileFs(t)
	tests := []struct {
		name     string
		patterns []string
		want     []string
		wantErr  bool
	}{
		{
			name:     "recursive glob",
			patterns: []string{"profiles/**/*.{yaml,toml}"},
			want:     []string{"profiles/broken.yaml", "profiles/regional/sydney.toml", "profiles/staging.yaml"},
		},
		{
			name:     "base profiles and files",
			patterns: []string{config.DemoProfile, "profiles/staging.yaml", config.DemoProfile},
			want:     []string{config.DemoProfile, "profiles/staging.yaml"},
		},
		{
			name:     "no match",
			patterns: []string{"profiles/*.json"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandProfiles(fs, tt.patterns)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateProfiles(t *testing.T) {
	fs := profileFs(t)
	paths := []string{config.DemoProfile, "profiles/staging.yaml", "profiles/broken.yaml", "profiles/regional/sydney.toml"}

	results := ValidateProfiles(context.Background(), fs, paths, nil, 2)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.True(t, topo_errs.IsConfigurationError(results[2].Err), "unexpected error: %v", results[2].Err)
	assert.NoError(t, results[3].Err)
}
