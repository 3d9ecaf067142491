package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/fhirq/internal/auth"
	"github.com/fivetwenty-io/fhirq/internal/client"
	"github.com/fivetwenty-io/fhirq/internal/constants"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
	"github.com/fivetwenty-io/fhirq/pkg/fhirclient"
)

// param is a parsed search parameter.
type param struct {
	Key    string
	System string
	Value  string
}

// parseParams parses key=value and key=system|value arguments in order.
func parseParams(args []string) ([]param, error) {
	params := make([]param, 0, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidParamFormat, arg)
		}

		p := param{Key: key, Value: value}
		// A leading pipe means "no system" and stays in the value.
		if system, code, found := strings.Cut(value, "|"); found && system != "" {
			p.System = system
			p.Value = code
		}

		params = append(params, p)
	}

	return params, nil
}

// newLogger returns a zap-backed logger when verbose output is on.
func newLogger() (*fhir.ZapLogger, error) {
	if !viper.GetBool("verbose") {
		return fhir.NewZapLogger(nil), nil
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return fhir.NewZapLogger(logger), nil
}

// buildFHIRConfig maps the CLI configuration onto a client config.
func buildFHIRConfig(config *Config, logger fhir.Logger) *fhir.Config {
	return &fhir.Config{
		BaseURL:      config.BaseURL,
		AuthURL:      config.AuthURL,
		TokenURL:     config.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scope:        config.Scope,
		Logger:       logger,
		Debug:        viper.GetBool("verbose"),
	}
}

// resolveTokenURL picks the token endpoint: configured, derived from the
// auth URL, or discovered from the server.
func resolveTokenURL(ctx context.Context, config *Config) (string, error) {
	if config.TokenURL != "" {
		return config.TokenURL, nil
	}

	if config.AuthURL != "" {
		return auth.TokenURLFor(config.AuthURL), nil
	}

	tokenURL, err := fhirclient.DiscoverTokenEndpoint(ctx, strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", constants.ErrNoAuthURLConfigured, err)
	}

	return tokenURL, nil
}

// newTokenManager builds a token manager that persists exchanged tokens.
func newTokenManager(ctx context.Context, config *Config) (*auth.ConfigTokenManager, error) {
	tokenURL, err := resolveTokenURL(ctx, config)
	if err != nil {
		return nil, err
	}

	oauth2Config := &auth.OAuth2Config{
		TokenURL:     tokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       strings.Fields(config.Scope),
	}

	return auth.NewConfigTokenManager(oauth2Config, NewConfigPersister(), config.BaseURL, config.Token, config.tokenExpiry()), nil
}

// createClient builds a query client from the CLI configuration.
func createClient(ctx context.Context, logger fhir.Logger) (fhir.Client, error) {
	config := loadConfig()
	if config.BaseURL == "" {
		return nil, constants.ErrNoBaseURLConfigured
	}

	fhirConfig := buildFHIRConfig(config, logger)

	if config.HasClientCredentials() {
		tokenManager, err := newTokenManager(ctx, config)
		if err != nil {
			return nil, err
		}

		queryClient, err := client.NewWithTokenManager(fhirConfig, tokenManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}

		return queryClient, nil
	}

	fhirConfig.AccessToken = config.Token

	queryClient, err := fhirclient.New(ctx, fhirConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return queryClient, nil
}

// resourceRow is the table view of a resource.
type resourceRow struct {
	ResourceType string
	ID           string
	LastUpdated  string
}

func summarize(raw json.RawMessage) resourceRow {
	var resource struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
		Meta         struct {
			LastUpdated string `json:"lastUpdated"`
		} `json:"meta"`
	}

	_ = json.Unmarshal(raw, &resource)

	row := resourceRow{
		ResourceType: resource.ResourceType,
		ID:           resource.ID,
		LastUpdated:  resource.Meta.LastUpdated,
	}

	if row.ID == "" {
		row.ID = constants.NotAvailable
	}

	if row.LastUpdated == "" {
		row.LastUpdated = constants.NotAvailable
	}

	return row
}

// decodeResources turns raw resources into generic values for json/yaml output.
func decodeResources(resources []json.RawMessage) ([]interface{}, error) {
	decoded := make([]interface{}, 0, len(resources))

	for _, raw := range resources {
		var value interface{}

		err := json.Unmarshal(raw, &value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode resource: %w", err)
		}

		decoded = append(decoded, value)
	}

	return decoded, nil
}

// outputResources writes resources in the configured output format.
func outputResources(out io.Writer, resources []json.RawMessage) error {
	switch viper.GetString(keyOutput) {
	case constants.FormatJSON, constants.FormatYAML:
		decoded, err := decodeResources(resources)
		if err != nil {
			return err
		}

		return encode(out, decoded)
	default:
		if len(resources) == 0 {
			_, _ = fmt.Fprintln(out, "No resources found")

			return nil
		}

		table := tablewriter.NewWriter(out)
		table.Header("Resource Type", "ID", "Last Updated")

		for _, raw := range resources {
			row := summarize(raw)
			_ = table.Append(row.ResourceType, row.ID, row.LastUpdated)
		}

		err := table.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	}
}

// resultView is the json/yaml view of a fhir.Result.
type resultView struct {
	URL        string      `json:"url,omitempty"         yaml:"url,omitempty"`
	Resolved   []string    `json:"resolved,omitempty"    yaml:"resolved,omitempty"`
	StatusCode int         `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Location   string      `json:"location,omitempty"    yaml:"location,omitempty"`
	NotFound   bool        `json:"not_found"             yaml:"not_found"`
	Resource   interface{} `json:"resource,omitempty"    yaml:"resource,omitempty"`
}

// outputResult writes a single-resource result in the configured output format.
func outputResult(out io.Writer, result *fhir.Result) error {
	view := resultView{
		URL:        result.URL,
		Resolved:   result.Resolved,
		StatusCode: result.StatusCode,
		Location:   result.Location,
		NotFound:   result.NotFound,
	}

	if len(result.Payload) > 0 {
		err := json.Unmarshal(result.Payload, &view.Resource)
		if err != nil {
			return fmt.Errorf("failed to decode resource: %w", err)
		}
	}

	switch viper.GetString(keyOutput) {
	case constants.FormatJSON, constants.FormatYAML:
		return encode(out, view)
	default:
		return displayResultTable(out, result)
	}
}

func displayResultTable(out io.Writer, result *fhir.Result) error {
	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	url := result.URL
	if url == "" {
		url = constants.NotAvailable
	}

	_ = table.Append("URL", url)

	if len(result.Resolved) > 1 {
		_ = table.Append("Resolved Via", strings.Join(result.Resolved[:len(result.Resolved)-1], ", "))
	}

	if result.StatusCode != 0 {
		_ = table.Append("Status", fmt.Sprintf("%d", result.StatusCode))
	}

	if result.Location != "" {
		_ = table.Append("Location", result.Location)
	}

	if result.NotFound {
		_ = table.Append("Found", "no")
	} else if len(result.Payload) > 0 {
		row := summarize(result.Payload)
		_ = table.Append("Resource Type", row.ResourceType)
		_ = table.Append("ID", row.ID)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// encode writes value as indented JSON or as YAML.
func encode(out io.Writer, value interface{}) error {
	if viper.GetString(keyOutput) == constants.FormatYAML {
		return yaml.NewEncoder(out).Encode(value)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
