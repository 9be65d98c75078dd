package cli

import (
	"os"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for vresolve.

Bash:
  # Add to ~/.bashrc:
  source <(vresolve completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(vresolve completion zsh)

  # Or install to fpath:
  vresolve completion zsh > "${fpath[1]}/_vresolve"

Fish:
  vresolve completion fish > ~/.config/fish/completions/vresolve.fish

PowerShell:
  vresolve completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

var completableKinds = []media.ContentKind{media.KindVideo, media.KindPhoto, media.KindPost, media.KindStory, media.KindProfile}

func init() {
	rootCmd.AddCommand(completionCmd)

	strategiesCmd.ValidArgsFunction = completeStrategyArgs
	serveCmd.ValidArgs = []string{"stop", "status"}
}

// completeStrategyArgs completes "strategies <platform> <kind>"
func completeStrategyArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var candidates []string
	switch len(args) {
	case 0:
		candidates = lo.Map(media.Platforms, func(p media.Platform, _ int) string { return string(p) })
	case 1:
		candidates = lo.Map(completableKinds, func(k media.ContentKind, _ int) string { return string(k) })
	default:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	return lo.Filter(candidates, func(s string, _ int) bool {
		return strings.HasPrefix(s, strings.ToLower(toComplete))
	}), cobra.ShellCompDirectiveNoFileComp
}
