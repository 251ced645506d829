// Package cli wires flags, config, and subcommands for the dnstail binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/dnstail/internal/errors"
)

// Root command flags
var (
	cfgFile            string
	pihole1Flag        string
	pihole2Flag        string
	usernameFlag       string
	commandFlag        string
	filterFlag         string
	blockedOnlyFlag    bool
	verboseFlag        bool
	colorFlag          string
	resolveTimeoutFlag string
	dialTimeoutFlag    string
	insecureFlag       bool
)

// rootCmd is the tail itself: dnstail's whole job is the root command.
var rootCmd = &cobra.Command{
	Use:   "dnstail",
	Short: "Stream and merge Pi-hole query logs from two servers",
	Long: `Tail the DNS query logs of two Pi-hole servers over SSH and merge them
into a single live, colorized stream.

Each host gets its own color, client IPs are reverse-resolved to hostnames
(cached for the session), and the stream can be narrowed to one client or
to blocked queries only.

Examples:
  dnstail
  dnstail --pihole1 10.0.0.2 --pihole2 10.0.0.3 -u pi
  dnstail --blocked-only
  dnstail --filter macbook
  dnstail -f 192.168.1.50 -b`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tailCommand(cmd)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for dnstail.

Examples:
  # Bash
  dnstail completion bash > /etc/bash_completion.d/dnstail

  # Zsh
  dnstail completion zsh > "${fpath[1]}/_dnstail"

  # Fish
  dnstail completion fish > ~/.config/fish/completions/dnstail.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .dnstail.yaml, then ~/.config/dnstail/config.yaml)")

	rootCmd.Flags().StringVar(&pihole1Flag, "pihole1", "", "hostname of first Pi-hole (default: pihole1)")
	rootCmd.Flags().StringVar(&pihole2Flag, "pihole2", "", "hostname of second Pi-hole (default: pihole2)")
	rootCmd.Flags().StringVarP(&usernameFlag, "username", "u", "", "SSH username (default: pi)")
	rootCmd.Flags().StringVar(&commandFlag, "command", "", "remote tail command (default: sudo pihole -t)")
	rootCmd.Flags().StringVarP(&filterFlag, "filter", "f", "", "filter by hostname or IP substring")
	rootCmd.Flags().BoolVarP(&blockedOnlyFlag, "blocked-only", "b", false, "show only blocked queries")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "show all log lines including cache/reply/forwarded")
	rootCmd.Flags().StringVar(&colorFlag, "color", "", "color mode: auto, always, or never")
	rootCmd.Flags().StringVar(&resolveTimeoutFlag, "resolve-timeout", "", "reverse lookup timeout per client (e.g., 2s, 500ms)")
	rootCmd.Flags().StringVar(&dialTimeoutFlag, "dial-timeout", "", "SSH connection timeout per host (e.g., 10s)")
	rootCmd.Flags().BoolVar(&insecureFlag, "insecure-host-key", false, "skip known_hosts verification")

	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command. Errors are printed once, here; commands
// keep cobra's own error echo silenced.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
