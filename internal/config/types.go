package config

import "time"

// Config represents the complete .dnstail.yaml configuration file.
// Every field has a matching CLI flag; flags win over file values.
type Config struct {
	// Hosts are the two monitored Pi-hole hosts. Each entry is an SSH
	// target: alias, hostname, or user@host[:port].
	Hosts []string `yaml:"hosts" mapstructure:"hosts"`

	// Username is the SSH username for hosts that don't carry one.
	Username string `yaml:"username" mapstructure:"username"`

	// Command is the remote tail command run on each host.
	Command string `yaml:"command" mapstructure:"command"`

	// DialTimeout bounds SSH connection establishment per host.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// ResolveTimeout bounds a single reverse lookup of a client address.
	ResolveTimeout time.Duration `yaml:"resolve_timeout" mapstructure:"resolve_timeout"`

	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`

	// Filter is a default identity filter (hostname or IP substring).
	Filter string `yaml:"filter" mapstructure:"filter"`

	// BlockedOnly shows only blocked queries by default.
	BlockedOnly bool `yaml:"blocked_only" mapstructure:"blocked_only"`

	// Verbose passes unrecognized log lines through.
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// InsecureHostKey skips known_hosts verification. For lab setups only.
	InsecureHostKey bool `yaml:"insecure_host_key" mapstructure:"insecure_host_key"`
}

// DefaultConfig returns a Config with the stock Pi-hole defaults.
func DefaultConfig() *Config {
	return &Config{
		Hosts:          []string{"pihole1", "pihole2"},
		Username:       "pi",
		Command:        "sudo pihole -t",
		DialTimeout:    10 * time.Second,
		ResolveTimeout: 2 * time.Second,
		Color:          "auto",
	}
}
