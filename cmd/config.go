package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/agenticcompany/redditor/internal/config"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8787"))
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigCheckCmd(a), newConfigInitCmd(), newConfigSetCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var secrets bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cfg
			w := cmd.OutOrStdout()
			p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format+"\n", args...) }

			p("Redditor Configuration")
			p("%s", strings.Repeat("=", 40))
			if a.cfgUsed != "" {
				p("Config File: %s", a.cfgUsed)
			}
			p("Debug Mode: %t", c.Debug)
			p("Log Level: %s", c.LogLevel)
			p("")

			p("Reddit API:")
			p("  Client ID: %s", secret(c.Reddit.ClientID, secrets))
			if secrets {
				p("  Client Secret: %s", orNotSet(c.Reddit.ClientSecret))
			}
			p("  User Agent: %s", c.Reddit.UserAgent)
			p("  Username: %s", orNotSet(c.Reddit.Username))
			p("")

			p("AI Configuration:")
			p("  OpenAI: %s", aiStatus(c.AI.OpenAIAPIKey, secrets))
			p("  Anthropic: %s", aiStatus(c.AI.AnthropicAPIKey, secrets))
			p("")

			p("Database:")
			p("  URL: %s", c.Database.URL)
			p("")

			p("Server:")
			p("  Address: %s", c.Server.Addr)
			return nil
		},
	}
	cmd.Flags().BoolVar(&secrets, "secrets", false, "Show secret values")
	return cmd
}

func secret(v string, show bool) string {
	switch {
	case v == "":
		return "(not set)"
	case show:
		return v
	default:
		return strings.Repeat("*", 8)
	}
}

func orNotSet(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func aiStatus(key string, show bool) string {
	switch {
	case key == "":
		return "not configured"
	case show:
		return key
	default:
		return "configured"
	}
}

func newConfigCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify configuration is valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var issues []string
			if !a.cfg.IsRedditConfigured() {
				issues = append(issues, "Reddit API credentials not configured")
			}
			if !a.cfg.IsAIConfigured() {
				issues = append(issues, "No AI API keys configured")
			}
			issues = append(issues, validationIssues(config.Validate(a.cfg))...)

			if len(issues) > 0 {
				stderr := cmd.ErrOrStderr()
				_, _ = fmt.Fprintln(stderr, "Configuration issues found:")
				for _, issue := range issues {
					_, _ = fmt.Fprintf(stderr, "  %s %s\n", failStyle.Render("✗"), issue)
				}
				return errReported
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration is valid\n", okStyle.Render("✓"))
			return nil
		},
	}
}

// validationIssues flattens an errors.Join result into one line per error.
func validationIssues(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, validationIssues(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", okStyle.Render("✓"), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", filepath.Join(".redditor", "config.yaml"), "Where to write the config file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigSetCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one value in the config file, keeping its comments",
		Example: `  redditor config set reddit.user_agent "my-bot/1.0 by u/me"
  redditor config set tracing.enabled true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := path
			if target == "" {
				target = a.cfgUsed
			}
			if target == "" {
				target = filepath.Join(".redditor", "config.yaml")
			}
			if err := config.Set(target, args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s (%s)\n", okStyle.Render("✓"), args[0], args[1], target)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Config file to edit (default: the loaded config file)")
	return cmd
}
