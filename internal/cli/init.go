package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/spf13/cobra"
)

var initStrategies bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create vresolve config file",
	Long: `Create ~/.config/vresolve/config.yml with default settings.

With --strategies, also write the built-in strategy table to
strategies.yml next to it, ready for editing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", config.SavePath())

		if !initStrategies {
			return nil
		}

		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		path := filepath.Join(dir, config.StrategiesFileName)
		if _, err := os.Stat(path); err == nil {
			fmt.Println(color.YellowString("%s already exists, left unchanged", path))
			return nil
		}
		if err := config.SaveStrategies(path, registry.Default().ToConfig()); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initStrategies, "strategies", false, "also write strategies.yml")
	rootCmd.AddCommand(initCmd)
}
