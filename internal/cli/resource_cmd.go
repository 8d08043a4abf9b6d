package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/apikit/internal/api"
	"github.com/soyeahso/apikit/internal/registry"
	"github.com/spf13/cobra"
)

func newResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Inspect resources of an API instance",
	}

	cmd.AddCommand(newResourceListCmd())
	cmd.AddCommand(newResourceLookupCmd())

	return cmd
}

// resolveInstance finds name@query in a registry built from the manifest.
func resolveInstance(name, query string) (*api.Instance, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return reg.Find(name, query)
}

func newResourceListCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list <api>",
		Short: "List the resources of an API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := resolveInstance(args[0], query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range inst.Resources() {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "api-version", registry.Latest, "version query: latest, exact version or range")
	return cmd
}

func newResourceLookupCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "lookup <api> <resource> <property>",
		Short: "Show what a property resolves to on a resource",
		Long: "Resolves a property with resource constants first, then resource methods, " +
			"then instance constants, then instance methods.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := resolveInstance(args[0], query)
			if err != nil {
				return err
			}
			res, err := inst.Resource(args[1])
			if err != nil {
				return err
			}

			r := res.Resolve(args[2])
			if !r.Found() {
				return fmt.Errorf("%w: %q on resource %q of %s", api.ErrNotFound, args[2], args[1], inst)
			}

			out := cmd.OutOrStdout()
			switch r.Kind {
			case api.KindConstant:
				fmt.Fprintf(out, "constant\t")
				return printValue(out, r.Value)
			default:
				fmt.Fprintf(out, "%s\t%s\n", r.Kind, strings.Join([]string{inst.String(), args[1], args[2]}, "/"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "api-version", registry.Latest, "version query: latest, exact version or range")
	return cmd
}
