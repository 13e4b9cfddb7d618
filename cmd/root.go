package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/shellfw/internal/config"
	"github.com/zjrosen/shellfw/internal/log"
	"github.com/zjrosen/shellfw/internal/shell"
	"github.com/zjrosen/shellfw/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
	elevate bool
	cfg     config.Config

	tracer *tracing.Provider
)

var rootCmd = &cobra.Command{
	Use:     "shellfw",
	Short:   "Resilient command execution over persistent shells",
	Long: `shellfw runs commands against a persistent child shell, falling back
through alternative command spellings until one succeeds. It is built for
hosts where the same tool may live under different names or prefixes
(coreutils, busybox, toolbox).`,
	Version:           version,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.config/shellfw/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write debug logs to .shellfw/debug.log")
	rootCmd.PersistentFlags().BoolVar(&elevate, "su", false,
		"run through the privileged shell helper")
	rootCmd.PersistentFlags().String("shell", "",
		"override the shell binary")

	_ = viper.BindPFlag("shell", rootCmd.PersistentFlags().Lookup("shell"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("shell", defaults.Shell)
	viper.SetDefault("su", defaults.Su)
	viper.SetDefault("stderr_capacity", defaults.StderrCapacity)
	viper.SetDefault("locator_ttl", defaults.LocatorTTL)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .shellfw/config.yaml (current directory)
		// 2. ~/.config/shellfw/config.yaml (user config)
		if _, err := os.Stat(".shellfw/config.yaml"); err == nil {
			viper.SetConfigFile(".shellfw/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "shellfw"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .shellfw/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".shellfw/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setup wires logging and tracing before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if debug {
		if cleanup, err := log.Init(".shellfw/debug.log"); err == nil {
			cobra.OnFinalize(cleanup)
			log.SetMinLevel(log.LevelDebug)
		}
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return err
	}
	tracer = provider
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}
}

// sessionOptions resolves the loaded config into shell options.
func sessionOptions() []shell.Option {
	return []shell.Option{
		shell.WithShellBinary(cfg.Shell, cfg.ShellArgs...),
		shell.WithSuBinary(cfg.Su, cfg.SuArgs...),
		shell.WithStderrCapacity(cfg.StderrCapacity),
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
