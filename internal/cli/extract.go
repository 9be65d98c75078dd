package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guiyumin/vresolve/internal/core/app"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/spf13/cobra"
)

var (
	extractInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	extractDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	extractErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	extractHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolve a post, reel, story or profile URL into media links",
	Long: `Resolve an Instagram, Facebook, TikTok or Pinterest URL into direct media URLs.

Examples:
  vresolve resolve https://www.tiktok.com/@user/video/7234567890
  vresolve resolve https://www.instagram.com/p/Cx123abc/ --json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd.Context(), args[0])
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(ctx context.Context, rawURL string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if resolveJSON {
		bundle, err := a.Engine.Resolve(ctx, rawURL)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	}

	_, err = runExtractWithSpinner(ctx, a.Engine.Resolve, rawURL)
	return err
}

// extractState holds extraction state
type extractState struct {
	mu     sync.RWMutex
	done   bool
	err    error
	result *media.MediaBundle
}

func (s *extractState) setDone(result *media.MediaBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.result = result
}

func (s *extractState) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.done = true
}

func (s *extractState) get() (bool, error, *media.MediaBundle) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.err, s.result
}

type extractTickMsg time.Time

type extractModel struct {
	spinner spinner.Model
	url     string
	state   *extractState
	cancel  context.CancelFunc
}

func newExtractModel(url string, state *extractState, cancel context.CancelFunc) extractModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return extractModel{
		spinner: s,
		url:     url,
		state:   state,
		cancel:  cancel,
	}
}

func extractTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return extractTickMsg(t)
	})
}

func (m extractModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, extractTickCmd())
}

func (m extractModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case extractTickMsg:
		done, _, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		return m, extractTickCmd()
	}

	return m, nil
}

func (m extractModel) View() string {
	done, err, result := m.state.get()

	if err != nil {
		return fmt.Sprintf("\n  %s Resolution failed: %v\n\n", extractErrStyle.Render("✗"), err)
	}

	if done && result != nil {
		return renderBundle(result)
	}

	return fmt.Sprintf("\n  %s Resolving: %s\n\n", m.spinner.View(), extractInfoStyle.Render(m.url))
}

func renderBundle(b *media.MediaBundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n  %s %s\n", extractDoneStyle.Render("✓"), b.Title)
	fmt.Fprintf(&sb, "  Uploader: %s\n", extractInfoStyle.Render(b.Uploader))
	if b.Duration > 0 {
		fmt.Fprintf(&sb, "  Duration: %s\n", time.Duration(b.Duration)*time.Second)
	}

	label := "Formats"
	if b.IsCarousel {
		label = "Items"
	}
	fmt.Fprintf(&sb, "\n  %s (%d):\n", label, len(b.Assets))
	for i, a := range b.Assets {
		line := fmt.Sprintf("    • [%d] %s (%s)", i+1, a.Quality, a.Ext)
		if a.Width > 0 && a.Height > 0 {
			line += fmt.Sprintf(" %dx%d", a.Width, a.Height)
		}
		if a.FilesizeMB > 0 {
			line += fmt.Sprintf(" %.2f MB", a.FilesizeMB)
		}
		if a.Note != "" && a.Note != a.Quality {
			line += " " + extractHintStyle.Render(a.Note)
		}
		fmt.Fprintf(&sb, "%s\n      %s\n", line, a.URL)
	}
	sb.WriteString("\n")
	return sb.String()
}

// runExtractWithSpinner runs resolve with a spinner TUI
func runExtractWithSpinner(ctx context.Context, resolve func(context.Context, string) (*media.MediaBundle, error), url string) (*media.MediaBundle, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &extractState{}

	// Start extraction in background
	go func() {
		result, err := resolve(ctx, url)
		if err != nil {
			state.setError(err)
		} else {
			state.setDone(result)
		}
	}()

	model := newExtractModel(url, state, cancel)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, err
	}

	done, extractErr, result := state.get()
	if extractErr != nil {
		return nil, extractErr
	}
	if !done {
		return nil, fmt.Errorf("resolution cancelled")
	}

	return result, nil
}
