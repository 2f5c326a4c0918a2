package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/injector"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models of configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withCore(func(_ *conf.Config, core *injector.Core) error {
				providers := core.Providers.List()
				if provider != "" {
					if _, err := core.Providers.Get(provider); err != nil {
						return err
					}
					providers = []string{core.Providers.Resolve(provider)}
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tMAX OUTPUT")
				for _, id := range providers {
					models, err := core.Providers.Models(cmd.Context(), id)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
						continue
					}
					for _, m := range models {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", id, m.ID, m.ContextWindow, m.MaxOutputTokens)
					}
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "only list this provider")
	return cmd
}
