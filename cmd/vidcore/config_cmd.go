package main

import (
	"fmt"

	"github.com/genricoloni/vidcore/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if lo.Must(cmd.Flags().GetBool("env")) {
				for _, f := range config.Defaults {
					_, _ = fmt.Fprintf(out, "%s\t%s\n", f.Env(), f.Description)
				}
				return nil
			}

			settings := config.NewAppConfig(zap.NewNop(), c.v).Settings()
			for _, key := range config.Keys() {
				_, _ = fmt.Fprintf(out, "%s = %v\n", key, settings[key])
			}
			if file := c.v.ConfigFileUsed(); file != "" {
				_, _ = fmt.Fprintf(out, "# loaded from %s\n", file)
			}
			return nil
		},
	}

	cmd.Flags().BoolP("env", "e", false, "List the environment variables instead")
	return cmd
}
