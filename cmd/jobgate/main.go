package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080"

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func main() {
	ui := newUI()
	if err := newRootCmd(ui).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func newRootCmd(ui *ui) *cobra.Command {
	baseURL := defaultBaseURL
	profileName := getenv("JOBGATE_PROFILE", "")

	root := &cobra.Command{
		Use:   "jobgate",
		Short: "jobgate CLI",
		Long:  "jobgate CLI for submitting analysis jobs through the gateway.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for the jobgate gateway")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		if !cmd.Flags().Changed("base-url") {
			baseURL = resolveBaseURL(os.Getenv("JOBGATE_BASE_URL"), prof)
		}
		if profileName == "" {
			profileName = active
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(submitCmd(&baseURL, ui))
	root.AddCommand(healthCmd(&baseURL, ui))
	root.AddCommand(configCmd(&profileName, &baseURL, ui))
	return root
}

func resolveBaseURL(env string, prof profile) string {
	if v := strings.TrimSpace(env); v != "" {
		return v
	}
	if prof.BaseURL != "" {
		return prof.BaseURL
	}
	return defaultBaseURL
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func helpTemplate(ui *ui) string {
	title := ui.title("jobgate")
	return fmt.Sprintf(`%s: CLI for the jobgate gateway

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  jobgate init --base-url http://localhost:8080
  jobgate submit --file data.csv --method arima --lags 3 --window 12
  jobgate health
  jobgate config show

`, title, configPath())
}
