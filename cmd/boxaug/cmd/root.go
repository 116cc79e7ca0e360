package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/boxaug/internal/config"
	"github.com/MeKo-Tech/boxaug/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "boxaug",
	Short: "Bounding-box preserving image augmentation",
	Long: `boxaug generates randomized variants of annotated images while keeping
their bounding boxes consistent with every geometric change.

Boxes are normalized [x, y, w, h] rectangles stored in a sidecar file next to
the image (photo.png -> photo.png.boxes.json). Every transform that moves
pixels moves the boxes with them.

This tool provides:
- Single image augmentation with optional overlay rendering
- Parallel batch generation of many variants per image
- An HTTP server for on-demand augmentation
- Reproducible results from a seed

Examples:
  boxaug augment photo.png --seed 42 --out photo_aug.png
  boxaug batch data/ --variants 10 --out augmented/
  boxaug serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		setupLogging(cmd, globalConfig)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.Flags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

// GetConfig returns the configuration resolved for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the loader used for the running command.
func GetConfigLoader() *config.Loader {
	return configLoader
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/boxaug, /etc/boxaug)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Uint64("seed", 0, "random seed; equal seeds reproduce equal outputs")
	rootCmd.PersistentFlags().String("policy", "", "augmentation policy file (JSON or YAML); empty uses the built-in default")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
	_ = viper.BindPFlag("policy.file", rootCmd.PersistentFlags().Lookup("policy"))
}

// initConfig reads the config file and BOXAUG_* environment variables. It
// runs before every command so repeated executions see fresh flag values.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs a JSON slog handler on stderr, keeping stdout free
// for command output such as manifests.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
