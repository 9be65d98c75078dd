package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vresolve configuration",
	Long:  "View and modify vresolve settings",
}

// vresolve config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n\n", color.New(color.Faint).Sprint("#"), config.SavePath())
		fmt.Print(string(data))
		return nil
	},
}

// vresolve config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// vresolve config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
` + configKeyHelp() + `
Examples:
  vresolve config set server.port 9000
  vresolve config set resolver.request_timeout 90s
  vresolve config set cookies_file ~/cookies.txt`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// vresolve config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := getConfigValue(config.LoadOrDefault(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

// vresolve config unset KEY - reset a value to its default
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if err := unsetConfigValue(cfg, args[0]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Unset %s\n", args[0])
		return nil
	},
}

// configKey binds a dotted key to one field
type configKey struct {
	name string
	help string
	get  func(*config.Config) string
	set  func(*config.Config, string) error
}

var configKeys = []configKey{
	{"server.port", "Server listen port",
		func(c *config.Config) string { return strconv.Itoa(c.Server.Port) },
		func(c *config.Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"server.api_key", "API key required in X-API-Key",
		func(c *config.Config) string { return c.Server.APIKey },
		func(c *config.Config, v string) error { c.Server.APIKey = v; return nil }},
	{"server.allow_origins", "Comma separated CORS origins",
		func(c *config.Config) string { return strings.Join(c.Server.AllowOrigins, ",") },
		func(c *config.Config, v string) error { c.Server.AllowOrigins = splitList(v); return nil }},
	{"resolver.request_timeout", "Whole-request ceiling (e.g. 90s)",
		func(c *config.Config) string { return c.Resolver.RequestTimeout.String() },
		func(c *config.Config, v string) error { return setDuration(&c.Resolver.RequestTimeout, v) }},
	{"resolver.workers", "Concurrent strategy attempts",
		func(c *config.Config) string { return strconv.Itoa(c.Resolver.Workers) },
		func(c *config.Config, v string) error { return setInt(&c.Resolver.Workers, v) }},
	{"resolver.share_timeout", "Share-link redirect timeout",
		func(c *config.Config) string { return c.Resolver.ShareTimeout.String() },
		func(c *config.Config, v string) error { return setDuration(&c.Resolver.ShareTimeout, v) }},
	{"browser.headless", "Run the browser headless (true/false)",
		func(c *config.Config) string { return strconv.FormatBool(c.Browser.IsHeadless()) },
		func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", v)
			}
			c.Browser.Headless = &b
			return nil
		}},
	{"browser.bin", "Browser executable",
		func(c *config.Config) string { return c.Browser.Bin },
		func(c *config.Config, v string) error { c.Browser.Bin = v; return nil }},
	{"http.timeout", "Outbound request timeout",
		func(c *config.Config) string { return c.HTTP.Timeout.String() },
		func(c *config.Config, v string) error { return setDuration(&c.HTTP.Timeout, v) }},
	{"http.retries", "Retries for GET requests",
		func(c *config.Config) string { return strconv.Itoa(c.HTTP.Retries) },
		func(c *config.Config, v string) error { return setInt(&c.HTTP.Retries, v) }},
	{"http.tls_fingerprint", "TLS fingerprint (chrome or empty)",
		func(c *config.Config) string { return c.HTTP.TLSFingerprint },
		func(c *config.Config, v string) error { c.HTTP.TLSFingerprint = v; return nil }},
	{"cookies_file", "Netscape cookies.txt",
		func(c *config.Config) string { return c.CookiesFile },
		func(c *config.Config, v string) error { c.CookiesFile = v; return nil }},
	{"ytdlp_path", "yt-dlp executable",
		func(c *config.Config) string { return c.YtDlpPath },
		func(c *config.Config, v string) error { c.YtDlpPath = v; return nil }},
	{"log.level", "debug, info, warn or error",
		func(c *config.Config) string { return c.Log.Level },
		func(c *config.Config, v string) error { c.Log.Level = v; return nil }},
	{"log.json", "JSON log output (true/false)",
		func(c *config.Config) string { return strconv.FormatBool(c.Log.JSON) },
		func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", v)
			}
			c.Log.JSON = b
			return nil
		}},
	{"log.file", "Log file (empty for stderr)",
		func(c *config.Config) string { return c.Log.File },
		func(c *config.Config, v string) error { c.Log.File = v; return nil }},
}

func lookupKey(key string) (configKey, error) {
	for _, k := range configKeys {
		if k.name == key {
			return k, nil
		}
	}
	return configKey{}, fmt.Errorf("unknown config key: %s\nRun 'vresolve config set --help' to see supported keys", key)
}

func configKeyHelp() string {
	var sb strings.Builder
	for _, k := range configKeys {
		fmt.Fprintf(&sb, "  %-26s %s\n", k.name, k.help)
	}
	return sb.String()
}

// setConfigValue sets a config value by key
func setConfigValue(cfg *config.Config, key, value string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	return k.set(cfg, value)
}

// getConfigValue gets a config value by key
func getConfigValue(cfg *config.Config, key string) (string, error) {
	k, err := lookupKey(key)
	if err != nil {
		return "", err
	}
	return k.get(cfg), nil
}

// unsetConfigValue copies the default value for key into cfg
func unsetConfigValue(cfg *config.Config, key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	return k.set(cfg, k.get(config.DefaultConfig()))
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid number: %s", v)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fmt.Errorf("invalid duration: %s", v)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)

	rootCmd.AddCommand(configCmd)
}

