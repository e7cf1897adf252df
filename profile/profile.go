// Package profile provides the instrument family profiles of X-Series
// signal generators: waveform naming limit, memory catalogs and default
// download timeout.
//
// The built-in profiles are embedded from profiles.yaml; Parse loads a
// custom set with the same layout.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtin []byte

// ErrInvalidProfile indicates a profile definition that cannot be used.
var ErrInvalidProfile = errors.New("profile: invalid profile")

// Profile describes an instrument family.
type Profile struct {
	Family      string `yaml:"family"`
	Description string `yaml:"description,omitempty"`
	// Models lists model number prefixes, e.g. "N5182". A profile without
	// models is the fallback of its set.
	Models             []string `yaml:"models,omitempty"`
	MaxNameLength      int      `yaml:"max_name_length"`
	VolatileCatalog    string   `yaml:"volatile_catalog"`
	NonvolatileCatalog string   `yaml:"nonvolatile_catalog"`
	LoadedCatalog      string   `yaml:"loaded_catalog"`
	DownloadTimeoutMs  int      `yaml:"download_timeout_ms"`
}

// DownloadTimeout returns the default completion timeout of a waveform download.
func (p Profile) DownloadTimeout() time.Duration {
	return time.Duration(p.DownloadTimeoutMs) * time.Millisecond
}

// Matches reports whether model belongs to the family, ignoring case.
func (p Profile) Matches(model string) bool {
	model = strings.ToUpper(strings.TrimSpace(model))
	for _, prefix := range p.Models {
		if strings.HasPrefix(model, strings.ToUpper(prefix)) {
			return true
		}
	}

	return false
}

func (p Profile) validate() error {
	switch {
	case p.Family == "":
		return fmt.Errorf("%w: missing family", ErrInvalidProfile)
	case p.MaxNameLength < 1:
		return fmt.Errorf("%w: %s: max_name_length must be >= 1", ErrInvalidProfile, p.Family)
	case p.VolatileCatalog == "" || p.NonvolatileCatalog == "" || p.LoadedCatalog == "":
		return fmt.Errorf("%w: %s: all catalogs are required", ErrInvalidProfile, p.Family)
	case p.DownloadTimeoutMs <= 0:
		return fmt.Errorf("%w: %s: download_timeout_ms must be positive", ErrInvalidProfile, p.Family)
	}

	return nil
}

// Set is an ordered list of profiles. Lookup returns the first match.
type Set struct {
	Profiles []Profile `yaml:"profiles"`
}

// Parse decodes and validates a YAML profile set.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("profile: parse: %w", err)
	}

	if len(set.Profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles defined", ErrInvalidProfile)
	}

	fallbacks := 0
	for _, p := range set.Profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if len(p.Models) == 0 {
			fallbacks++
		}
	}
	if fallbacks > 1 {
		return nil, fmt.Errorf("%w: %d fallback profiles, at most one allowed", ErrInvalidProfile, fallbacks)
	}

	return &set, nil
}

// Lookup returns the profile matching model. When no profile matches, the
// fallback profile is returned with ok set to false; without a fallback the
// result is the zero Profile.
func (s *Set) Lookup(model string) (p Profile, ok bool) {
	var fallback Profile
	for _, p := range s.Profiles {
		if len(p.Models) == 0 {
			fallback = p
			continue
		}
		if p.Matches(model) {
			return p, true
		}
	}

	return fallback, false
}

// Family returns the profile with the given family name, ignoring case.
func (s *Set) Family(name string) (Profile, bool) {
	for _, p := range s.Profiles {
		if strings.EqualFold(p.Family, name) {
			return p, true
		}
	}

	return Profile{}, false
}

var loadDefault = sync.OnceValue(func() *Set {
	set, err := Parse(builtin)
	if err != nil {
		panic(err)
	}

	return set
})

// Default returns the built-in profile set.
func Default() *Set {
	return loadDefault()
}

// Lookup returns the built-in profile for model. See Set.Lookup.
func Lookup(model string) (Profile, bool) {
	return Default().Lookup(model)
}
