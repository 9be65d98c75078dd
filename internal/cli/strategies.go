package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/guiyumin/vresolve/internal/core/resolver"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies [platform] [kind]",
	Short: "Show which strategies run for each platform and content kind",
	Long: `Show the strategy plan the resolver follows.

Examples:
  vresolve strategies                  # every platform and kind
  vresolve strategies instagram        # Instagram only
  vresolve strategies tiktok video     # the exact plan for TikTok videos`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		platforms := media.Platforms
		if len(args) > 0 {
			p := media.Platform(strings.ToLower(args[0]))
			if !lo.Contains(media.Platforms, p) {
				return fmt.Errorf("unknown platform %q", args[0])
			}
			platforms = []media.Platform{p}
		}

		kinds := completableKinds
		if len(args) > 1 {
			kinds = []media.ContentKind{media.ContentKind(strings.ToLower(args[1]))}
		}

		printPlan(cmd.OutOrStdout(), reg, platforms, kinds)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func loadRegistry() (*registry.Registry, error) {
	path := config.StrategiesPath()
	cfg, err := config.LoadStrategies(path)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.Faint).Sprint("using"), path)
	}
	return registry.FromConfig(cfg)
}

func printPlan(w io.Writer, reg *registry.Registry, platforms []media.Platform, kinds []media.ContentKind) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	dim := color.New(color.Faint)

	for _, p := range platforms {
		bold.Fprintln(w, p.DisplayName())
		found := false
		for _, k := range kinds {
			descs := reg.Lookup(p, k)
			if len(descs) == 0 {
				continue
			}
			found = true
			fmt.Fprintf(w, "  %s %s\n", cyan.Sprint(k), dim.Sprintf("(budget %s)", resolver.Budget(descs)))
			for i, g := range resolver.Groups(descs) {
				names := lo.Map(g.Descriptors, func(d registry.Descriptor, _ int) string {
					return fmt.Sprintf("%s[%s]", d.Name, d.Timeout)
				})
				fmt.Fprintf(w, "    %d. %-10s %s\n", i+1, g.Mode, strings.Join(names, ", "))
			}
		}
		if !found {
			dim.Fprintln(w, "  no strategies")
		}
		fmt.Fprintln(w)
	}
}
