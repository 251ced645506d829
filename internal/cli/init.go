package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/dnstail/internal/config"
	"github.com/rileyhilliard/dnstail/internal/errors"
)

var initForce bool

// initCmd creates a starter .dnstail.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .dnstail.yaml configuration",
	Long: `Write a starter configuration file in the current directory.

The file holds the two Pi-hole hosts, the SSH username, and the default
filter settings, so plain 'dnstail' works without flags.

Examples:
  dnstail init
  dnstail init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	rootCmd.AddCommand(initCmd)
}

// initCommand writes the default config to ./.dnstail.yaml.
func initCommand(force bool) error {
	path := config.ConfigFileName

	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			path+" already exists",
			"Use --force to overwrite it.")
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to render default config", "")
	}

	header := []byte("# dnstail configuration. Flags override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write "+path,
			"Check directory permissions")
	}

	fmt.Printf("Wrote %s. Edit the hosts, then run 'dnstail'.\n", path)
	return nil
}
