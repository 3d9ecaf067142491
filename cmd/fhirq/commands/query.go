package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/fhirq/internal/constants"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	var showURL bool

	cmd := &cobra.Command{
		Use:   "search RESOURCE_TYPE [KEY=VALUE | KEY=SYSTEM|VALUE]...",
		Short: "Search for resources",
		Long: `Search for resources of a type. Parameters are sent in the order given.
A value containing '|' is treated as SYSTEM|VALUE.`,
		Example: `  fhirq search Patient name=Donald
  fhirq search Patient identifier='http://acme.org/mrns|2216120'
  fhirq search Observation subject=Patient/42 --url`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			client, err := createClient(cmd.Context(), logger)
			if err != nil {
				return err
			}

			target := client.Search().ForResource(args[0])
			for _, p := range params {
				if p.System != "" {
					target = target.WithSystemParam(p.Key, p.System, p.Value)
				} else {
					target = target.WithParam(p.Key, p.Value)
				}
			}

			if showURL {
				url, err := target.URL()
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), url)

				return nil
			}

			resources, err := target.Execute(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to search %s: %w", args[0], err)
			}

			return outputResources(cmd.OutOrStdout(), resources)
		},
	}

	cmd.Flags().BoolVar(&showURL, "url", false, "print the search URL without sending it")

	return cmd
}

// NewReadCommand creates the read command.
func NewReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "read RESOURCE_TYPE ID",
		Short:   "Read a resource by id",
		Long:    "Read a single resource. A resource the server does not have is reported, not treated as an error.",
		Example: `  fhirq read Patient 42 --output json`,
		Args:    cobra.ExactArgs(2),
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

			result, err := client.Read().ForResource(args[0]).WithID(args[1]).Execute(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read %s/%s: %w", args[0], args[1], err)
			}

			return outputResult(cmd.OutOrStdout(), result)
		},
	}
}

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create RESOURCE_TYPE",
		Short: "Create a resource",
		Long:  "Create a resource from a JSON document read from --file or standard input",
		Example: `  fhirq create Patient --file patient.json
  cat observation.json | fhirq create Observation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			client, err := createClient(cmd.Context(), logger)
			if err != nil {
				return err
			}

			result, err := client.Create().ForResource(args[0]).Body(cmd.Context(), payload)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}

			return outputResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file holding the resource JSON (default: standard input)")

	return cmd
}

// readPayload reads a JSON resource from file, or from in when file is empty.
func readPayload(in io.Reader, file string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)

	if file != "" {
		// #nosec G304 -- the user names the file to upload
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(in)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, constants.ErrEmptyPayload
	}

	if !json.Valid(data) {
		return nil, constants.ErrInvalidPayload
	}

	return json.RawMessage(data), nil
}

// NewOperationCommand creates the operation command.
func NewOperationCommand() *cobra.Command {
	var (
		resourceID string
		subjectID  string
	)

	cmd := &cobra.Command{
		Use:   "operation NAME",
		Short: "Invoke a named operation",
		Long: `Invoke a named operation such as $document on a resource.

With --id the operation runs on that resource directly. With --subject the
resource is first looked up by its subject and the operation runs on the
single match.`,
		Example: `  fhirq operation '$document' --subject 42
  fhirq operation '$document' --id c1`,
		Aliases: []string{"op"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (resourceID == "") == (subjectID == "") {
				return constants.ErrTargetRequired
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			client, err := createClient(cmd.Context(), logger)
			if err != nil {
				return err
			}

			stage := client.Operation(args[0])

			var ready fhir.OperationReady
			if resourceID != "" {
				ready = stage.ResourceID(resourceID)
			} else {
				ready = stage.ForSubject(subjectID)
			}

			result, err := ready.Execute(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to run %s: %w", args[0], err)
			}

			return outputResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&resourceID, "id", "", "id of the resource to run the operation on")
	cmd.Flags().StringVar(&subjectID, "subject", "", "id of the subject to look the resource up by")

	return cmd
}
