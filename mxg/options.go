package mxg

import (
	"errors"

	"github.com/arloliu/go-xsg/logger"
	"github.com/arloliu/go-xsg/profile"
)

// Option is a functional option for configuring a Generator.
type Option interface {
	apply(*Generator) error
}

type optFunc func(*Generator) error

func (f optFunc) apply(g *Generator) error { return f(g) }

// WithProfile uses p instead of looking up the profile by model.
func WithProfile(p profile.Profile) Option {
	return optFunc(func(g *Generator) error {
		if p.Family == "" || p.MaxNameLength < 1 {
			return errors.New("mxg: incomplete profile")
		}
		g.profile = p
		g.fixedProfile = true

		return nil
	})
}

// WithProfiles looks up the family profile in set instead of the built-in profiles.
func WithProfiles(set *profile.Set) Option {
	return optFunc(func(g *Generator) error {
		if set == nil {
			return errors.New("mxg: profile set must not be nil")
		}
		g.profiles = set

		return nil
	})
}

// WithLogger sets the logger of the generator.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(g *Generator) error {
		if l == nil {
			return errors.New("mxg: logger must not be nil")
		}
		g.logger = l

		return nil
	})
}
