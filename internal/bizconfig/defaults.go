package bizconfig

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultConfig returns the baseline configuration every scope chain starts
// from. The defaults are embedded so a fresh install scores identically
// everywhere before any scope has been written.
func DefaultConfig() (BusinessConfig, error) {
	var cfg BusinessConfig
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return BusinessConfig{}, eris.Wrap(err, "bizconfig: parse embedded defaults")
	}
	if err := Validate(cfg); err != nil {
		return BusinessConfig{}, eris.Wrap(err, "bizconfig: embedded defaults invalid")
	}
	return cfg, nil
}

// MustDefaultConfig is DefaultConfig for initialization paths where the
// embedded defaults are trusted.
func MustDefaultConfig() BusinessConfig {
	cfg, err := DefaultConfig()
	if err != nil {
		panic(err)
	}
	return cfg
}
