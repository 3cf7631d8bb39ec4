package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keepmind9/chanbridge/internal/gateway"
)

var (
	validateConfigPath string
	validateShow       bool
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Config   string   `json:"config"`
	Channels int      `json:"channels"`
	Enabled  int      `json:"enabled"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate chanbridge configuration file",
	Long: `Validate the chanbridge configuration file without starting the gateway.

This command checks:
  - YAML syntax
  - Required fields
  - Channel credentials
  - Logging settings

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		// Get config file path
		configFile := validateConfigPath
		if configFile == "" {
			// Try default locations
			for _, loc := range []string{
				"config.yaml",
				filepath.Join(os.Getenv("HOME"), ".config/chanbridge/config.yaml"),
				"/etc/chanbridge/config.yaml",
			} {
				if _, err := os.Stat(loc); err == nil {
					configFile = loc
					break
				}
			}
		}

		if configFile == "" {
			fmt.Println("❌ No configuration file found")
			fmt.Println("\nSpecify a config file with --config or ensure one exists at:")
			fmt.Println("  - ./config.yaml")
			fmt.Println("  - ~/.config/chanbridge/config.yaml")
			fmt.Println("  - /etc/chanbridge/config.yaml")
			os.Exit(1)
		}

		// Load configuration
		cfg, err := gateway.LoadConfig(configFile)
		if err != nil {
			result := ValidationResult{
				Valid:  false,
				Config: configFile,
				Errors: []string{err.Error()},
			}
			outputValidationResult(result, validateJSON)
			os.Exit(1)
		}

		result := ValidationResult{
			Valid:    true,
			Config:   configFile,
			Channels: len(cfg.Channels),
			Warnings: validateConfigDetails(cfg),
		}
		for _, ch := range cfg.Channels {
			if ch.Enabled {
				result.Enabled++
			}
		}

		// Show full config if requested
		if validateShow {
			fmt.Printf("✓ Configuration loaded: %s\n\n", configFile)
			fmt.Printf("Channels (%d):\n", len(cfg.Channels))
			for name, ch := range cfg.Channels {
				status := "disabled"
				if ch.Enabled {
					status = "enabled"
				}
				restriction := "open to all users"
				if len(ch.AllowedUsers) > 0 {
					restriction = fmt.Sprintf("%d allowed users", len(ch.AllowedUsers))
				}
				fmt.Printf("  - %s: %s (%s)\n", name, status, restriction)
			}
			fmt.Printf("\nLogging: level=%s file=%s\n\n", cfg.Logging.Level, cfg.Logging.File)
		}

		outputValidationResult(result, validateJSON)
	},
}

func outputValidationResult(result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Printf("{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Println(string(output))
		return
	}

	if result.Valid {
		fmt.Println("✓ Configuration is valid")
		fmt.Printf("  - Config: %s\n", result.Config)
		fmt.Printf("  - Channels configured: %d\n", result.Channels)
		fmt.Printf("  - Channels enabled: %d\n", result.Enabled)
		if len(result.Warnings) > 0 {
			fmt.Println("\n⚠️  Warnings:")
			for _, warning := range result.Warnings {
				fmt.Printf("  - %s\n", warning)
			}
		}
	} else {
		fmt.Println("❌ Configuration validation failed:")
		if len(result.Errors) > 0 {
			fmt.Println("\nErrors:")
			for _, errMsg := range result.Errors {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
	}
}

func validateConfigDetails(cfg *gateway.Config) []string {
	var warnings []string

	for name, ch := range cfg.Channels {
		if ch.Enabled && len(ch.AllowedUsers) == 0 {
			warnings = append(warnings,
				fmt.Sprintf("Channel '%s' has no allowed_users list - every user is accepted", name))
		}
	}

	if cfg.Logging.File == "" {
		warnings = append(warnings, "No log file configured - logs go to stdout only")
	}

	return warnings
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
