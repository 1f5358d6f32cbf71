// Package config provides type-safe environment variable loading with
// per-type caching using Go generics.
//
// A .env file is loaded automatically on first use; parsing is handled by
// the caarlos0/env library:
//
//	type TrackerConfig struct {
//		InactivitySeconds int  `env:"INACTIVITY_SECONDS" envDefault:"1200"`
//		UseRedirects      bool `env:"USE_REDIRECTS" envDefault:"true"`
//	}
//
//	var cfg TrackerConfig
//	config.MustLoad(&cfg)
//
// Each configuration type is parsed once per application lifetime; later
// calls return the cached value.
package config
