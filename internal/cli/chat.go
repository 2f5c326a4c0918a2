package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/chat"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/injector"
)

type chatFlags struct {
	provider     string
	model        string
	system       string
	conversation string
	stream       bool
	temperature  float32
	maxTokens    int
	showUsage    bool
}

func (f *chatFlags) options(cmd *cobra.Command) chat.Options {
	opts := chat.Options{MaxTokens: f.maxTokens}
	if cmd.Flags().Changed("temperature") {
		opts.Temperature = types.Float32(f.temperature)
	}
	return opts
}

func (f *chatFlags) messages(prompt string) []types.Message {
	var msgs []types.Message
	if f.system != "" {
		msgs = append(msgs, types.NewMessage(types.RoleSystem, f.system))
	}
	return append(msgs, types.NewMessage(types.RoleUser, prompt))
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	f := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message to a provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return opts.withCore(func(config *conf.Config, core *injector.Core) error {
				return runChat(cmd, config, core, f, prompt)
			})
		},
	}
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "openai", "provider id or alias")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model id (defaults to providers.<id>.model)")
	cmd.Flags().StringVar(&f.system, "system", "", "system prompt")
	cmd.Flags().StringVar(&f.conversation, "conversation", "", "conversation id, history is loaded from the store")
	cmd.Flags().BoolVarP(&f.stream, "stream", "s", false, "print chunks as they arrive")
	cmd.Flags().Float32VarP(&f.temperature, "temperature", "t", 0, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "completion token limit")
	cmd.Flags().BoolVar(&f.showUsage, "usage", false, "print token usage after the reply")
	return cmd
}

func runChat(cmd *cobra.Command, config *conf.Config, core *injector.Core, f *chatFlags, prompt string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	modelID, err := defaultModel(config, core, f.provider, f.model)
	if err != nil {
		return err
	}
	model, err := core.Chat.ResolveModel(ctx, f.provider, modelID)
	if err != nil {
		return err
	}
	opts := f.options(cmd)

	if f.conversation != "" {
		if f.stream {
			return errors.New("--stream cannot be combined with --conversation")
		}
		reply, err := core.Chat.ChatConversation(ctx, f.conversation, prompt, model, opts)
		if err != nil {
			return err
		}
		return printReply(out, reply, f.showUsage)
	}

	if !f.stream {
		reply, err := core.Chat.Chat(ctx, f.messages(prompt), model, opts)
		if err != nil {
			return err
		}
		return printReply(out, reply, f.showUsage)
	}

	stream, err := core.Chat.ChatStream(ctx, f.messages(prompt), model, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	var collector chat.Collector
	for stream.Next() {
		chunk := stream.Current()
		collector.Add(chunk)
		if _, err := io.WriteString(out, chunk.Content); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return err
	}
	if f.showUsage {
		return printUsage(out, collector.Message())
	}
	return nil
}

// defaultModel picks the model flag, then the provider's configured model
func defaultModel(config *conf.Config, core *injector.Core, provider, model string) (string, error) {
	if model != "" {
		return model, nil
	}
	id := core.Providers.Resolve(provider)
	if pc, ok := config.Providers[id]; ok && pc.Model != "" {
		return pc.Model, nil
	}
	return "", fmt.Errorf("no model given for provider %s, pass --model or set providers.%s.model", provider, id)
}

func printReply(out io.Writer, reply *types.Message, usage bool) error {
	if _, err := fmt.Fprintln(out, reply.Content); err != nil {
		return err
	}
	if reply.Metadata != nil {
		for _, call := range reply.Metadata.ToolCalls {
			if _, err := fmt.Fprintf(out, "[tool call] %s(%s)\n", call.Name, call.RawArguments); err != nil {
				return err
			}
		}
	}
	if usage {
		return printUsage(out, reply)
	}
	return nil
}

func printUsage(out io.Writer, msg *types.Message) error {
	if msg == nil || msg.Usage == nil {
		_, err := fmt.Fprintln(out, "usage: unknown")
		return err
	}
	_, err := fmt.Fprintf(out, "usage: prompt=%d completion=%d total=%d\n",
		msg.Usage.PromptTokens, msg.Usage.CompletionTokens, msg.Usage.TotalTokens)
	return err
}
