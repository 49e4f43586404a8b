package config

import (
	"bytes"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// BaseKey names the built-in profile a profile file is loaded over. Files without it extend the demo profile.
const BaseKey = "base"

// Load reads a YAML or TOML profile file and overlays it on its base profile.
func Load(fs afero.Fs, path string) (Profile, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "could not read profile %s", path)
	}
	values := map[string]any{}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(bytes.NewReader(content)).Decode(&values)
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(content)).Decode(&values)
	default:
		return Profile{}, errors.Errorf("unsupported profile format %q for %s", ext, path)
	}
	if err != nil && len(content) > 0 {
		return Profile{}, errors.Wrapf(err, "could not decode profile %s", path)
	}

	base := DemoProfile
	if b, ok := values[BaseKey].(string); ok {
		base = b
	}
	delete(values, BaseKey)
	profile, err := BaseProfile(base)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "profile %s", path)
	}
	if err := Overlay(&profile, values); err != nil {
		return Profile{}, errors.Wrapf(err, "profile %s", path)
	}

	if profile.BootstrapScriptPath != "" {
		scriptPath := profile.BootstrapScriptPath
		if !filepath.IsAbs(scriptPath) {
			scriptPath = filepath.Join(filepath.Dir(path), scriptPath)
		}
		script, err := afero.ReadFile(fs, scriptPath)
		if err != nil {
			return Profile{}, errors.Wrapf(err, "could not read bootstrap script of profile %s", path)
		}
		profile.BootstrapScript = string(script)
	}
	zap.L().Named(component).Debug("loaded profile",
		zap.String("path", path),
		zap.String("base", base),
		zap.String("profile", profile.Name),
	)
	return profile, nil
}

// Overlay decodes values over profile. Keys absent from values keep their current value and unknown keys are
// an error.
func Overlay(profile *Profile, values map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           profile,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}
