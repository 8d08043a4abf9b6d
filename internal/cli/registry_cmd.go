package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/apikit/internal/api"
	"github.com/soyeahso/apikit/internal/manifest"
	"github.com/soyeahso/apikit/internal/registry"
	"github.com/spf13/cobra"
)

// loadRegistry builds a fresh registry from the configured manifest.
func loadRegistry() (*api.Registry, error) {
	policy, err := registry.ParsePolicy(cfg.Registry.Duplicates)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(paths.ManifestPath(cfg))
	if err != nil {
		return nil, err
	}
	reg := api.NewRegistry(log, registry.WithPolicy(policy))
	if _, err := manifest.Build(reg, m, log); err != nil {
		return nil, err
	}
	return reg, nil
}

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect registered API instances",
	}

	cmd.AddCommand(newRegistryListCmd())
	cmd.AddCommand(newRegistryResolveCmd())

	return cmd
}

func newRegistryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API names and their versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := reg.Names()
			if len(names) == 0 {
				fmt.Fprintln(out, "(no APIs registered)")
				return nil
			}
			for _, name := range names {
				fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(reg.Versions(name), ", "))
			}
			return nil
		},
	}
}

func newRegistryResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name> [query]",
		Short: "Resolve a version query (latest, exact version or range) to an instance",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}

			query := registry.Latest
			if len(args) == 2 {
				query = args[1]
			}
			inst, err := reg.Find(args[0], query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, inst)
			if resources := inst.Resources(); len(resources) > 0 {
				fmt.Fprintf(out, "resources: %s\n", strings.Join(resources, ", "))
			}
			return nil
		},
	}
}
