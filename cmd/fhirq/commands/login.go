package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fivetwenty-io/fhirq/internal/constants"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		authURL      string
		clientID     string
		clientSecret string
		scope        string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to a FHIR server",
		Long: `Exchange client credentials for an access token and save both to the
configuration file. Without --auth-url the token endpoint is discovered from
the server's SMART configuration.`,
		Example: `  fhirq login --base-url https://fhir.example.com/r4 --client-id app --scope 'system/*.read'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			reader := bufio.NewReader(cmd.InOrStdin())

			if config.BaseURL == "" {
				config.BaseURL = prompt(cmd.OutOrStdout(), reader, "FHIR base URL: ")
			}

			if config.BaseURL == "" {
				return constants.ErrNoBaseURLConfigured
			}

			if authURL != "" {
				config.AuthURL = authURL
				config.TokenURL = ""
			}

			if clientID != "" {
				config.ClientID = clientID
			}

			if config.ClientID == "" {
				config.ClientID = prompt(cmd.OutOrStdout(), reader, "Client ID: ")
			}

			if clientSecret != "" {
				config.ClientSecret = clientSecret
			}

			if config.ClientSecret == "" {
				secret, err := readSecret(cmd.OutOrStdout(), reader)
				if err != nil {
					return err
				}

				config.ClientSecret = secret
			}

			if scope != "" {
				config.Scope = scope
			}

			if !config.HasClientCredentials() {
				return constants.ErrNoClientCredentials
			}

			// Credentials changed, so any stored token is stale.
			config.Token = ""
			config.TokenExpiresAt = nil

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			tokenManager, err := newTokenManager(cmd.Context(), config)
			if err != nil {
				return err
			}

			// The config token manager saves the new token through the persister.
			err = tokenManager.RefreshToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to obtain access token: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s\n", config.BaseURL)

			if expiry := tokenManager.GetTokenExpiry(); !expiry.IsZero() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Token expires at %s\n", expiry.Local().Format("2006-01-02 15:04:05 MST"))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&authURL, "auth-url", "", "authorization server base URL")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&scope, "scope", "", "space separated scopes to request")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the FHIR server",
		Long:  "Remove the stored access token and client secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.Token = ""
			config.TokenExpiresAt = nil
			config.ClientSecret = ""

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

func prompt(out io.Writer, reader *bufio.Reader, label string) string {
	_, _ = fmt.Fprint(out, label)
	value, _ := reader.ReadString('\n')

	return strings.TrimSpace(value)
}

// readSecret reads the client secret without echo when stdin is a terminal.
func readSecret(out io.Writer, reader *bufio.Reader) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return prompt(out, reader, "Client secret: "), nil
	}

	_, _ = fmt.Fprint(out, "Client secret: ")

	secretBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read client secret: %w", err)
	}

	_, _ = fmt.Fprintln(out)

	return strings.TrimSpace(string(secretBytes)), nil
}
