package cli

import (
	"slices"

	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ResolveProfile returns the base profile called arg, or loads arg as a profile file from fs.
func ResolveProfile(fs afero.Fs, arg string) (config.Profile, error) {
	if slices.Contains(config.BaseProfiles, arg) {
		return config.BaseProfile(arg)
	}
	exists, err := afero.Exists(fs, arg)
	if err != nil {
		return config.Profile{}, errors.Wrapf(err, "could not stat profile %s", arg)
	}
	if !exists {
		return config.Profile{}, errors.Errorf("%s is neither a base profile %v nor a profile file", arg, config.BaseProfiles)
	}
	return config.Load(fs, arg)
}
