package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/bzlcrate/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("bzlcrate", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
bzlcrate - Generates Bazel build files from resolved crate metadata.

Usage:
  bzlcrate [options] METADATA_PATH

Arguments:
  METADATA_PATH
    Path to the resolved dependency metadata document (.json).

Options:
`)
		flagSet.PrintDefaults()
	}

	metadataFlag := flagSet.String("metadata", "", "Path to the resolved dependency metadata document.")
	settingsFlag := flagSet.String("settings", "", "Path to the generation settings file (.hcl or .toml).")
	modeFlag := flagSet.String("mode", "", "Override the output layout. Options: 'vendored' or 'remote'.")
	outputRootFlag := flagSet.String("output-root", "", "Override the output root directory from the settings file.")
	workDirFlag := flagSet.String("workdir", ".", "Workspace directory generated paths are relative to.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Resolve and render everything but write nothing; print planned paths.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	metadataPath := *metadataFlag
	if metadataPath == "" && flagSet.NArg() > 0 {
		metadataPath = flagSet.Arg(0)
	}
	if metadataPath == "" {
		flagSet.Usage()
		return nil, true, nil
	}
	if *settingsFlag == "" {
		return nil, false, &ExitError{Code: 2, Message: "missing required flag: -settings"}
	}

	mode := strings.ToLower(*modeFlag)
	switch mode {
	case "", "vendored", "remote":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid mode: must be 'vendored' or 'remote'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		MetadataPath: metadataPath,
		SettingsPath: *settingsFlag,
		Mode:         mode,
		OutputRoot:   *outputRootFlag,
		WorkDir:      *workDirFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		DryRun:       *dryRunFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
