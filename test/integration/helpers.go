//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	FhirqPath    string
	Verbose      bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		BaseURL:      os.Getenv("FHIR_BASE_URL"),
		AuthURL:      os.Getenv("FHIR_AUTH_URL"),
		ClientID:     os.Getenv("FHIR_CLIENT_ID"),
		ClientSecret: os.Getenv("FHIR_CLIENT_SECRET"),
		FhirqPath:    getFhirqPath(),
		Verbose:      os.Getenv("FHIRQ_VERBOSE") == "true",
	}
}

// getFhirqPath determines the path to the fhirq binary
func getFhirqPath() string {
	if path := os.Getenv("FHIRQ_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../fhirq",
		"./fhirq",
		"../fhirq",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "fhirq" // Fallback to PATH
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.BaseURL == "" {
		t.Skip("FHIR_BASE_URL not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.FhirqPath); err != nil {
		t.Skipf("fhirq binary not found at %s, skipping integration test", config.FhirqPath)
	}
}

// HasCredentials reports whether client credentials were provided
func (config *TestConfig) HasCredentials() bool {
	return config.ClientID != "" && config.ClientSecret != ""
}

// CommandRunner runs fhirq against a private config file
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a fhirq command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a fhirq command with stdin input
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.FhirqPath, args...) // #nosec G204 -- test binary

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.FhirqPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Setup stores the base URL and, when available, logs in
func (runner *CommandRunner) Setup() error {
	_, stderr, err := runner.Run("config", "set", "base_url", runner.config.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to set base URL: %s", stderr)
	}

	if !runner.config.HasCredentials() {
		return nil
	}

	args := []string{"login", "--client-id", runner.config.ClientID, "--client-secret", runner.config.ClientSecret}
	if runner.config.AuthURL != "" {
		args = append(args, "--auth-url", runner.config.AuthURL)
	}

	_, stderr, err = runner.Run(args...)
	if err != nil {
		return fmt.Errorf("failed to login: %s", stderr)
	}

	return nil
}

// GenerateTestName creates a unique test value
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
