package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/trohook/internal/config"
)

var configPluginArgs []string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the hook configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved plugin configuration",
	Long: `Resolve the plugin arguments the way the hook does (config file, then
TROHOOK_* environment, then --plugin-arg) and print them with the
passphrase masked.`,
	RunE: runConfigShow,
}

// configView is what config show prints.
type configView struct {
	Source string              `json:"source" yaml:"source"`
	Config config.PluginConfig `json:"config" yaml:"config"`
	Valid  bool                `json:"valid" yaml:"valid"`
	Error  string              `json:"error,omitempty" yaml:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringArrayVar(&configPluginArgs, "plugin-arg", nil, "plugin argument as key=value (repeatable)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fileArgs, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := config.Parse(config.Merge(fileArgs, configPluginArgs))
	if err != nil {
		return err
	}

	view := configView{Source: GetConfigFile(), Config: cfg.Redacted(), Valid: true}
	if view.Source == "" {
		view.Source = "(environment and flags only)"
	}
	if err := cfg.Validate(); err != nil {
		view.Valid = false
		view.Error = err.Error()
	}

	if done, err := writeStructured(cmd.OutOrStdout(), view); done {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Key", "Value")
	table.Append("source", view.Source)
	for _, arg := range view.Config.Args() {
		key, value, _ := strings.Cut(arg, "=")
		table.Append(key, value)
	}
	table.Append("valid", strconv.FormatBool(view.Valid))
	if view.Error != "" {
		table.Append("error", view.Error)
	}
	return table.Render()
}
