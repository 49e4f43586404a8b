package cli

import (
	"testing"

	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/lithammer/dedent"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "profiles/staging.yaml", []byte(dedent.Dedent(`
		base: production
		name: staging
		reader_count: 2
		`)), 0644))

	tests := []struct {
		name     string
		arg      string
		wantName string
		wantErr  bool
	}{
		{name: "base profile", arg: config.DemoProfile, wantName: config.DemoProfile},
		{name: "profile file", arg: "profiles/staging.yaml", wantName: "staging"},
		{name: "missing", arg: "profiles/nope.yaml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ResolveProfile(fs, tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name)
		})
	}
}
