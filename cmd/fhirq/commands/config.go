package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/fhirq/internal/constants"
)

// Configuration keys.
const (
	keyBaseURL        = "base_url"
	keyAuthURL        = "auth_url"
	keyTokenURL       = "token_url"
	keyClientID       = "client_id"
	keyClientSecret   = "client_secret"
	keyScope          = "scope"
	keyToken          = "token"
	keyTokenExpiresAt = "token_expires_at"
	keyOutput         = "output"
)

// settableKeys lists the keys `config set` and `config unset` accept.
//
//nolint:gochecknoglobals // fixed lookup table
var settableKeys = map[string]bool{
	keyBaseURL:      true,
	keyAuthURL:      true,
	keyTokenURL:     true,
	keyClientID:     true,
	keyClientSecret: true,
	keyScope:        true,
	keyToken:        true,
	keyOutput:       true,
}

// Config represents the CLI configuration file.
type Config struct {
	BaseURL        string     `json:"base_url,omitempty"         yaml:"base_url,omitempty"`
	AuthURL        string     `json:"auth_url,omitempty"         yaml:"auth_url,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	Scope          string     `json:"scope,omitempty"            yaml:"scope,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	Output         string     `json:"output,omitempty"           yaml:"output,omitempty"`
}

// HasClientCredentials reports whether the config can exchange credentials for a token.
func (c *Config) HasClientCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// tokenExpiry returns the stored token expiry, or the zero time.
func (c *Config) tokenExpiry() time.Time {
	if c.TokenExpiresAt == nil {
		return time.Time{}
	}

	return *c.TokenExpiresAt
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "View and modify the fhirq configuration file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskSecrets(loadConfig())

			switch viper.GetString(keyOutput) {
			case constants.FormatJSON:
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")

				return encoder.Encode(config)
			case constants.FormatYAML:
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(config)
			default:
				return displayConfigTable(cmd.OutOrStdout(), config)
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value in the fhirq configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			config := loadConfig()

			err := setConfigValue(config, key, value)
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value from the fhirq configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			config := loadConfig()

			err := setConfigValue(config, key, "")
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)

			return nil
		},
	}
}

// setConfigValue assigns value to key. An empty value clears it. Changing the
// server or credentials drops the cached token.
func setConfigValue(config *Config, key, value string) error {
	if !settableKeys[key] {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	switch key {
	case keyBaseURL:
		config.BaseURL = value
	case keyAuthURL:
		config.AuthURL = value
	case keyTokenURL:
		config.TokenURL = value
	case keyClientID:
		config.ClientID = value
	case keyClientSecret:
		config.ClientSecret = value
	case keyScope:
		config.Scope = value
	case keyToken:
		config.Token = value
		config.TokenExpiresAt = nil

		return nil
	case keyOutput:
		config.Output = value

		return nil
	}

	config.Token = ""
	config.TokenExpiresAt = nil

	return nil
}

// loadConfig reads the configuration from viper.
func loadConfig() *Config {
	config := &Config{
		BaseURL:      viper.GetString(keyBaseURL),
		AuthURL:      viper.GetString(keyAuthURL),
		TokenURL:     viper.GetString(keyTokenURL),
		ClientID:     viper.GetString(keyClientID),
		ClientSecret: viper.GetString(keyClientSecret),
		Scope:        viper.GetString(keyScope),
		Token:        viper.GetString(keyToken),
		Output:       viper.GetString(keyOutput),
	}

	if expiresAt := viper.GetTime(keyTokenExpiresAt); !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	return config
}

// configFilePath returns the file the configuration is saved to.
func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, constants.ConfigDirName, constants.ConfigFileName), nil
}

// saveConfigStruct writes config to the configuration file and reloads viper.
func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	viper.Set(keyBaseURL, config.BaseURL)
	viper.Set(keyAuthURL, config.AuthURL)
	viper.Set(keyTokenURL, config.TokenURL)
	viper.Set(keyClientID, config.ClientID)
	viper.Set(keyClientSecret, config.ClientSecret)
	viper.Set(keyScope, config.Scope)
	viper.Set(keyToken, config.Token)
	viper.Set(keyTokenExpiresAt, config.tokenExpiry())

	return nil
}

// maskSecrets returns a copy of config safe for display.
func maskSecrets(config *Config) *Config {
	masked := *config
	if masked.ClientSecret != "" {
		masked.ClientSecret = constants.MaskedSecret
	}

	if masked.Token != "" {
		masked.Token = constants.MaskedSecret
	}

	return &masked
}

func displayConfigTable(out io.Writer, config *Config) error {
	values := map[string]string{
		keyBaseURL:      config.BaseURL,
		keyAuthURL:      config.AuthURL,
		keyTokenURL:     config.TokenURL,
		keyClientID:     config.ClientID,
		keyClientSecret: config.ClientSecret,
		keyScope:        config.Scope,
		keyToken:        config.Token,
		keyOutput:       config.Output,
	}

	if config.TokenExpiresAt != nil {
		values[keyTokenExpiresAt] = config.TokenExpiresAt.Format(time.RFC3339)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(out)
	table.Header("Key", "Value")

	for _, key := range keys {
		value := values[key]
		if value == "" {
			value = constants.None
		}

		_ = table.Append(key, value)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
