package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/apikit/internal/config"
	"github.com/soyeahso/apikit/internal/manifest"
	"github.com/soyeahso/apikit/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show apikit status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", version.Info())

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Logging:  level=%s style=%s\n", cfg.Logging.Level, cfg.Logging.Style)
			fmt.Fprintf(out, "Registry: duplicates=%s\n", cfg.Registry.Duplicates)

			manifestPath := paths.ManifestPath(cfg)
			m, err := manifest.Load(manifestPath)
			switch {
			case errors.Is(err, os.ErrNotExist):
				fmt.Fprintf(out, "Manifest: %s (not found)\n", manifestPath)
			case err != nil:
				fmt.Fprintf(out, "Manifest: %s (error: %v)\n", manifestPath, err)
			default:
				fmt.Fprintf(out, "Manifest: %s\n", manifestPath)
				for _, a := range m.APIs {
					names := make([]string, 0, len(a.Resources))
					for _, r := range a.Resources {
						names = append(names, r.Name)
					}
					fmt.Fprintf(out, "API:      %s@%s resources=%s\n", a.Name, a.Version, strings.Join(names, ","))
				}
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	return cmd
}
