package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/version"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "vresolve [url]",
	Short:   "Resolve social media links into direct, downloadable media URLs",
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			return
		}
		if err := runResolve(cmd.Context(), args[0]); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ~/.config/vresolve/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the result as JSON")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config named by --config, else the default location,
// and applies its logging section
func loadConfig() (*config.Config, io.Closer, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return nil, nil, err
		}
	} else {
		cfg = config.LoadOrDefault()
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
