package config

import (
	"fmt"

	"github.com/rileyhilliard/dnstail/internal/errors"
)

// Validate checks a config for problems the rest of the program shouldn't
// have to cope with.
func Validate(cfg *Config) error {
	if len(cfg.Hosts) != 2 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Expected exactly two hosts, got %d", len(cfg.Hosts)),
			"dnstail merges the logs of a Pi-hole pair. Set hosts: [pihole1, pihole2] or use --pihole1/--pihole2.")
	}
	for i, h := range cfg.Hosts {
		if h == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host %d is empty", i+1),
				"Each host must be an SSH alias, hostname, or user@host.")
		}
	}
	if cfg.Hosts[0] == cfg.Hosts[1] {
		return errors.New(errors.ErrConfig,
			"Both hosts are '"+cfg.Hosts[0]+"'",
			"The two monitored hosts must be different machines.")
	}

	switch cfg.Color {
	case "", "auto", "always", "never":
	default:
		return errors.New(errors.ErrConfig,
			"Unknown color mode: "+cfg.Color,
			"Use auto, always, or never.")
	}

	if cfg.DialTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"dial_timeout cannot be negative", "")
	}
	if cfg.ResolveTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"resolve_timeout cannot be negative", "")
	}

	return nil
}
