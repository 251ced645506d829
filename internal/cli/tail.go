package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/dnstail/internal/config"
	"github.com/rileyhilliard/dnstail/internal/errors"
	"github.com/rileyhilliard/dnstail/internal/filter"
	"github.com/rileyhilliard/dnstail/internal/merge"
	"github.com/rileyhilliard/dnstail/internal/resolve"
	"github.com/rileyhilliard/dnstail/internal/source"
	"github.com/rileyhilliard/dnstail/internal/ui"
	"github.com/rileyhilliard/dnstail/pkg/sshutil"
)

// tailCommand is the main workflow: load config, connect to both hosts,
// and stream the merged log until interrupted.
func tailCommand(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sshutil.StrictHostKeyChecking = !cfg.InsecureHostKey
	defer sshutil.CloseAgent()

	printer := ui.NewPrinter(os.Stdout, ui.ColorEnabled(cfg.Color, os.Stdout))

	// Ctrl+C / SIGTERM triggers the graceful stop path.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Bold("Connecting to Pi-hole servers...")

	sources, err := openSources(cfg)
	if err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("Connected to %s and %s", cfg.Hosts[0], cfg.Hosts[1]))
	printer.Bold("Streaming logs... (Press Ctrl+C to stop)")
	fmt.Println()

	resolver := resolve.New(resolve.WithTimeout(cfg.ResolveTimeout))
	criteria := filter.Criteria{
		Identity:    cfg.Filter,
		BlockedOnly: cfg.BlockedOnly,
	}

	merger := merge.New(sources, resolver, criteria, printer,
		merge.WithVerbose(cfg.Verbose))

	stats := merger.Run(ctx)

	if ctx.Err() != nil {
		printer.Notice("Stopping...")
	}
	printer.Muted(fmt.Sprintf("%d lines received, %d shown, %d blocked",
		stats.Lines, stats.Shown, stats.Blocked))

	return nil
}

// openSources connects to both hosts in parallel, like the two tails the
// tool replaces. Either connection failing fails the run: a merge of one
// host is not what the operator asked for.
func openSources(cfg *config.Config) ([]merge.Source, error) {
	sources := make([]merge.Source, len(cfg.Hosts))
	errs := make([]error, len(cfg.Hosts))

	var wg sync.WaitGroup
	for i, host := range cfg.Hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			src, err := source.Open(source.Config{
				Host:        host,
				User:        cfg.Username,
				Command:     cfg.Command,
				DialTimeout: cfg.DialTimeout,
			})
			if err != nil {
				errs[i] = err
				return
			}
			sources[i] = src
		}(i, host)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			// Don't leak the connection that did come up.
			for _, s := range sources {
				if s != nil {
					s.Close()
				}
			}
			return nil, err
		}
	}

	return sources, nil
}

// loadConfig layers CLI flags over the config file over the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := config.Find(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("pihole1") {
		if len(cfg.Hosts) < 1 {
			cfg.Hosts = append(cfg.Hosts, "")
		}
		cfg.Hosts[0] = pihole1Flag
	}
	if flags.Changed("pihole2") {
		for len(cfg.Hosts) < 2 {
			cfg.Hosts = append(cfg.Hosts, "")
		}
		cfg.Hosts[1] = pihole2Flag
	}
	if flags.Changed("username") {
		cfg.Username = usernameFlag
	}
	if flags.Changed("command") {
		cfg.Command = commandFlag
	}
	if flags.Changed("filter") {
		cfg.Filter = filterFlag
	}
	if flags.Changed("blocked-only") {
		cfg.BlockedOnly = blockedOnlyFlag
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verboseFlag
	}
	if flags.Changed("color") {
		cfg.Color = colorFlag
	}
	if flags.Changed("insecure-host-key") {
		cfg.InsecureHostKey = insecureFlag
	}
	if flags.Changed("resolve-timeout") {
		d, err := parseTimeout("resolve-timeout", resolveTimeoutFlag)
		if err != nil {
			return nil, err
		}
		cfg.ResolveTimeout = d
	}
	if flags.Changed("dial-timeout") {
		d, err := parseTimeout("dial-timeout", dialTimeoutFlag)
		if err != nil {
			return nil, err
		}
		cfg.DialTimeout = d
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseTimeout parses a duration flag value.
func parseTimeout(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", value, name),
			"Try something like 5s, 2m, or 500ms.")
	}
	return d, nil
}
