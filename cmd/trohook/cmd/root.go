package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/trohook/internal/logging"
)

var (
	cfgFile      string
	logLevel     string
	outputFormat string
	logToFile    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "trohook",
	Short: "Capture signed provenance (TROs) for Slurm jobs",
	Long: `trohook hooks into a Slurm job's lifecycle, activates XALT tracing for the job,
records the job's arrangements and performance into a Transparent Research Object
with tro-utils, and signs it when the job exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries the job's exit status out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trohook/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config or info)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-file", false, "also append logs to /var/log/trohook/trohook/trohook.log (./logs when not writable)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig locates the config file. Plugin keys are read from it by config.Load.
func initConfig() {
	if cfgFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".trohook", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
			}
		}
	}

	viper.SetEnvPrefix("TROHOOK")
	viper.AutomaticEnv()
	viper.BindEnv("log_level", "TROHOOK_LOG_LEVEL")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "trohook: ignoring unreadable config %s: %v\n", cfgFile, err)
		}
	}
}

// GetConfigFile returns the config file in use, or "" when there is none
func GetConfigFile() string {
	return cfgFile
}

// newLogger builds the CLI logger. The --log-level flag wins over the config value.
// Callers Close it to release the log file.
func newLogger(w io.Writer, configured string, jsonFormat bool) *logging.Logger {
	level := viper.GetString("log_level")
	if level == "" {
		level = configured
	}
	if logToFile {
		logger, err := logging.NewFileLogger("trohook", logging.ParseLevel(level), jsonFormat)
		if err == nil {
			return logger
		}
		fmt.Fprintf(os.Stderr, "trohook: logging to stderr only: %v\n", err)
	}
	logger := logging.NewLogger(logging.ParseLevel(level), jsonFormat)
	logger.SetOutput(w)
	return logger
}

// writeStructured prints v as JSON or YAML according to --output.
// It returns false for table output so the caller renders its own table.
func writeStructured(w io.Writer, v interface{}) (bool, error) {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", outputFormat)
	}
}
