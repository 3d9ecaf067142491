package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/fhirq/internal/constants"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage authentication tokens",
		Long:  "Commands for inspecting, printing, and refreshing the stored access token",
	}

	cmd.AddCommand(newTokenStatusCommand())
	cmd.AddCommand(newTokenPrintCommand())
	cmd.AddCommand(newTokenRefreshCommand())

	return cmd
}

// TokenStatus describes the stored token.
type TokenStatus struct {
	BaseURL   string     `json:"base_url"             yaml:"base_url"`
	HasToken  bool       `json:"has_token"            yaml:"has_token"`
	Renewable bool       `json:"renewable"            yaml:"renewable"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool       `json:"expired"              yaml:"expired"`
}

// tokenStatus reports on the token stored in config as of now.
func tokenStatus(config *Config, now time.Time) TokenStatus {
	status := TokenStatus{
		BaseURL:   config.BaseURL,
		HasToken:  config.Token != "",
		Renewable: config.HasClientCredentials(),
		ExpiresAt: config.TokenExpiresAt,
	}

	if config.TokenExpiresAt != nil {
		status.Expired = !now.Before(*config.TokenExpiresAt)
	}

	return status
}

func newTokenStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show token status and expiration",
		Long:  "Display whether a token is stored, when it expires, and whether it can be renewed",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.BaseURL == "" {
				return constants.ErrNoBaseURLConfigured
			}

			status := tokenStatus(config, time.Now())

			switch viper.GetString(keyOutput) {
			case constants.FormatJSON, constants.FormatYAML:
				return encode(cmd.OutOrStdout(), status)
			default:
				return displayTokenStatus(cmd.OutOrStdout(), status)
			}
		},
	}
}

func displayTokenStatus(out io.Writer, status TokenStatus) error {
	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	_ = table.Append("Base URL", status.BaseURL)
	_ = table.Append("Token", yesNo(status.HasToken))
	_ = table.Append("Renewable", yesNo(status.Renewable))

	if status.ExpiresAt != nil {
		_ = table.Append("Expires At", status.ExpiresAt.Local().Format(time.RFC3339))
		_ = table.Append("Expired", yesNo(status.Expired))
	} else {
		_ = table.Append("Expires At", constants.NotAvailable)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}

	return "no"
}

func newTokenPrintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print a valid access token",
		Long:  "Print the access token, exchanging client credentials first when the stored one has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			client, err := createClient(cmd.Context(), logger)
			if err != nil {
				return err
			}

			token, err := client.AccessToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("%w: %w", constants.ErrNoTokenConfigured, err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}
}

func newTokenRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Obtain a new access token",
		Long:  "Exchange the configured client credentials for a new access token and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.BaseURL == "" {
				return constants.ErrNoBaseURLConfigured
			}

			if !config.HasClientCredentials() {
				return constants.ErrNoClientCredentials
			}

			tokenManager, err := newTokenManager(cmd.Context(), config)
			if err != nil {
				return err
			}

			err = tokenManager.RefreshToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to refresh token: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Token refreshed")

			return nil
		},
	}
}
