package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/injector"
)

func newParallelCmd(opts *rootOptions) *cobra.Command {
	f := &chatFlags{}
	var targets []string

	cmd := &cobra.Command{
		Use:     "parallel [message]",
		Short:   "Send the same message to several models at once",
		Example: "  aichat parallel -T openai/gpt-4o -T claude/claude-3-5-sonnet-20241022 \"hello\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(targets) == 0 {
				return fmt.Errorf("at least one --target provider/model is required")
			}
			prompt := strings.Join(args, " ")
			return opts.withCore(func(_ *conf.Config, core *injector.Core) error {
				ctx := cmd.Context()
				models := make([]types.Model, 0, len(targets))
				for _, target := range targets {
					provider, modelID, ok := strings.Cut(target, "/")
					if !ok || provider == "" || modelID == "" {
						return fmt.Errorf("invalid target %q, expected provider/model", target)
					}
					model, err := core.Chat.ResolveModel(ctx, provider, modelID)
					if err != nil {
						return err
					}
					models = append(models, model)
				}

				results, err := core.Chat.Parallel(ctx, f.messages(prompt), models, f.options(cmd))
				if err != nil {
					return err
				}
				return printParallel(cmd, results, f.showUsage)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&targets, "target", "T", nil, "provider/model, repeatable")
	cmd.Flags().StringVar(&f.system, "system", "", "system prompt")
	cmd.Flags().Float32VarP(&f.temperature, "temperature", "t", 0, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "completion token limit")
	cmd.Flags().BoolVar(&f.showUsage, "usage", false, "print token usage after each reply")
	return cmd
}

func printParallel(cmd *cobra.Command, results map[string]*types.Message, usage bool) error {
	out := cmd.OutOrStdout()
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := fmt.Fprintf(out, "== %s ==\n", id); err != nil {
			return err
		}
		if err := printReply(out, results[id], usage); err != nil {
			return err
		}
	}
	return nil
}
