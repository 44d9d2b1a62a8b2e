package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"companiond/pkg/types"
)

func newModelsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List catalog models and where their files resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, g, lookupEnv)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") {
				cfg.LogLevel = "warn"
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return printModels(cmd.OutOrStdout(), a.mgr.Models())
		},
	}
}

func printModels(w io.Writer, resp types.ModelsResponse) error {
	if len(resp.Models) == 0 {
		_, err := fmt.Fprintln(w, "no models found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBACKEND\tTHINKING\tMAX TOKENS\tPATH")
	for _, m := range resp.Models {
		path := m.Path
		if !m.Available {
			path = "(missing) " + m.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n", m.Name, m.Backend, m.Thinking, m.MaxTokens, path)
	}
	return tw.Flush()
}
