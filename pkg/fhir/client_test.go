package fhir_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *fhir.Config
		wantErr error
	}{
		{name: "nil config", config: nil, wantErr: fhir.ErrConfigRequired},
		{name: "missing base URL", config: &fhir.Config{}, wantErr: fhir.ErrBaseURLRequired},
		{name: "base URL only", config: &fhir.Config{BaseURL: "https://fhir.example.com/r4"}},
		{
			name:    "relative base URL",
			config:  &fhir.Config{BaseURL: "/r4"},
			wantErr: fhir.ErrInvalidConfig,
		},
		{
			name:    "malformed auth URL",
			config:  &fhir.Config{BaseURL: "https://fhir.example.com", AuthURL: "auth server"},
			wantErr: fhir.ErrInvalidConfig,
		},
		{
			name:    "secret without client id",
			config:  &fhir.Config{BaseURL: "https://fhir.example.com", ClientSecret: "s"},
			wantErr: fhir.ErrInvalidConfig,
		},
		{
			name:    "negative timeout",
			config:  &fhir.Config{BaseURL: "https://fhir.example.com", HTTPTimeout: -time.Second},
			wantErr: fhir.ErrInvalidConfig,
		},
		{
			name: "incomplete operation convention",
			config: &fhir.Config{
				BaseURL:    "https://fhir.example.com",
				Operations: map[string]fhir.OperationConvention{"$summary": {AnchorType: "Encounter"}},
			},
			wantErr: fhir.ErrInvalidConfig,
		},
		{
			name: "full client credentials config",
			config: &fhir.Config{
				BaseURL:      "https://fhir.example.com",
				AuthURL:      "https://auth.example.com",
				ClientID:     "id",
				ClientSecret: "secret",
				Scope:        "system/*.read",
				HTTPTimeout:  5 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_NeedsTokenExchange(t *testing.T) {
	t.Parallel()

	assert.False(t, (&fhir.Config{}).NeedsTokenExchange())
	assert.True(t, (&fhir.Config{ClientID: "id", ClientSecret: "secret"}).NeedsTokenExchange())
	assert.False(t, (&fhir.Config{ClientID: "id", ClientSecret: "secret", AccessToken: "t"}).NeedsTokenExchange())
}

func TestConfig_OperationConventions(t *testing.T) {
	t.Parallel()

	config := &fhir.Config{
		Operations: map[string]fhir.OperationConvention{
			"$summary":  {AnchorType: "Encounter", SubjectType: "Patient"},
			"$document": {AnchorType: "Composition", SubjectType: "Group"},
		},
	}

	conventions := config.OperationConventions()
	assert.Equal(t, "Encounter", conventions["$summary"].AnchorType)
	assert.Equal(t, "Group", conventions["$document"].SubjectType)

	defaults := fhir.DefaultOperations()
	assert.Equal(t, fhir.OperationConvention{AnchorType: "Composition", SubjectType: "Patient"}, defaults["$document"])
}

func TestZapLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := fhir.NewZapLogger(zap.New(core))

	logger.Debug("HTTP Request", map[string]interface{}{"url": "https://x/Patient", "attempt": 0})
	logger.Error("FHIR Response Error", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "HTTP Request", entries[0].Message)
	assert.Equal(t, "https://x/Patient", entries[0].ContextMap()["url"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)

	nop := fhir.NewZapLogger(nil)
	nop.Info("ignored", nil)
	assert.NoError(t, nop.Sync())
}
