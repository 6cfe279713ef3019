// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/service"
)

type configKeyType struct{}

var configKey = configKeyType{}

// rootOptions holds the persistent flags.
type rootOptions struct {
	cfgFile     string
	browserMode string
	headless    bool
	planner     bool
	logLevel    string
	format      string
}

// NewRootCmd builds the command tree. factory creates the components behind
// every page-driving subcommand.
func NewRootCmd(factory service.ComponentFactory) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "pagewright",
		Short:         "Pagewright drives web pages with plain-language commands.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, opts); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagewright"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting pagewright", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./pagewright.yaml)")
	flags.StringVar(&opts.browserMode, "browser", "", "page backend: cdp or offline (overrides config)")
	flags.BoolVar(&opts.headless, "headless", true, "run Chrome without a window")
	flags.BoolVar(&opts.planner, "planner", false, "enable the model-backed fallback for free-form commands")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	flags.StringVarP(&opts.format, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(factory, opts),
		newBatchCmd(factory, opts),
		newAnalyzeCmd(factory, opts),
		newResolveCmd(factory, opts),
		newPlanCmd(opts),
		newServeCmd(factory),
		newJournalCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with the production component factory.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd(service.NewComponentFactory())
	defer observability.Sync()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// initializeConfig reads the config file and environment, then applies the
// persistent flags the user actually set.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) error {
	if opts.cfgFile != "" {
		v.SetConfigFile(opts.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pagewright")
		v.SetConfigName("pagewright")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGEWRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("browser") {
		v.Set("browser.mode", opts.browserMode)
	}
	if flags.Changed("headless") {
		v.Set("browser.headless", opts.headless)
	}
	if flags.Changed("planner") {
		v.Set("planner.enabled", opts.planner)
	}
	if flags.Changed("log-level") {
		v.Set("logger.level", opts.logLevel)
	}
	return nil
}

// getConfigFromContext returns the configuration PersistentPreRunE stored.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
