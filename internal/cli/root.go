package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/apikit/internal/config"
	"github.com/soyeahso/apikit/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	logLevel     string
	manifestFile string

	// loaded at init time
	paths config.Paths
	cfg   config.Config
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikit",
		Short: "Compose and inspect versioned API instances",
		Long:  "apikit builds versioned API instances from a manifest and lets you inspect their registry, resources and resolution rules.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			cfg, err = config.Load(paths.Config)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = strings.ToLower(logLevel)
			}
			if manifestFile != "" {
				cfg.Manifest = manifestFile
			}
			if issues := config.Validate(&cfg); len(issues) > 0 {
				return &config.ConfigError{Message: fmt.Sprintf("invalid configuration: %s", issues[0])}
			}

			log = logging.NewStyled(cfg.Logging.Style, cfg.Logging.Level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.apikit/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, silent)")
	cmd.PersistentFlags().StringVar(&manifestFile, "manifest", "", "API manifest (default ~/.apikit/apis.yaml)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRegistryCmd())
	cmd.AddCommand(newResourceCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
