package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/guiyumin/streamscribe/internal/core/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage streamscribe configuration",
	Long:  "View and modify streamscribe settings stored in config.yml",
}

// streamscribe config init - write defaults
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config.yml with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", config.SavePath())
		return nil
	},
}

// streamscribe config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if cfg.Server.APIKey != "" {
			cfg.Server.APIKey = strings.Repeat("*", len(cfg.Server.APIKey))
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n", config.SavePath())
		if !config.Exists() {
			fmt.Println("# (file not found, showing defaults)")
		}
		fmt.Print(string(data))
		return nil
	},
}

// streamscribe config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// streamscribe config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

When the value is omitted for server.api_key, it is read from the terminal
without echo.

Examples:
  streamscribe config set whisper.model small
  streamscribe config set network.proxy http://127.0.0.1:7890
  streamscribe config set paths.output_dir ~/Transcripts`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		switch {
		case len(args) == 2:
			value = args[1]
		case key == "server.api_key":
			fmt.Print("API key: ")
			secret, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			value = string(secret)
		default:
			return fmt.Errorf("missing value for %s", key)
		}

		cfg := config.LoadOrDefault()
		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("%w\nRun 'streamscribe config set --help' to see supported keys", err)
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if key == "server.api_key" {
			value = strings.Repeat("*", len(value))
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

// streamscribe config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := config.LoadOrDefault().Get(args[0])
		if err != nil {
			return fmt.Errorf("%w\nRun 'streamscribe config set --help' to see supported keys", err)
		}
		fmt.Println(value)
		return nil
	},
}

// streamscribe config unset KEY - reset a config value
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		cfg := config.LoadOrDefault()
		if err := cfg.Unset(key); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Unset %s\n", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
