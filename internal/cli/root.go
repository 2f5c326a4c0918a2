// Package cli wires the cobra command tree to the chat core.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/injector"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

// replaced in tests
var (
	coreFactory = injector.InitializeCore
	appFactory  = injector.InitializeApp
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "aichat",
		Short:         "Multi-provider LLM chat core",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (env AICHAT_* overrides)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newParallelCmd(opts))
	root.AddCommand(newModelsCmd(opts))
	return root
}

// load reads configuration and builds the logger
// quiet commands log at warn unless --verbose is set
func (o *rootOptions) load(quiet bool) (*conf.Config, *logger.Logger, error) {
	config, err := conf.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logCfg := config.Log
	switch {
	case o.verbose:
		logCfg.Level = "debug"
	case quiet:
		logCfg.Level = "warn"
	}
	log, err := logger.New(&logCfg)
	if err != nil {
		return nil, nil, err
	}
	logger.SetGlobal(log)
	return config, log, nil
}

// withCore runs fn with an initialized chat core and releases it afterwards
func (o *rootOptions) withCore(fn func(config *conf.Config, core *injector.Core) error) error {
	config, log, err := o.load(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	core, cleanup, err := coreFactory(config, log)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(config, core)
}
