// Package fhirclient provides the primary entry point for constructing a
// FHIR query client that implements the fhir.Client interface.
//
// It layers configuration, HTTP transport, and authentication on top of the
// chain interfaces and types defined in the fhir package. Most applications
// should import fhirclient to build a client, then start chains from the
// returned fhir.Client: Search(), Read(), Create(), and Operation(name).
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/fhirq/pkg/fhir"
//	  "github.com/fivetwenty-io/fhirq/pkg/fhirclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // Minimal: just a base URL (no auth).
//	  cli, err := fhirclient.New(ctx, &fhir.Config{BaseURL: "https://fhir.example.com/r4"})
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with an access token you already have:
//	  cli, err = fhirclient.NewWithToken(ctx, "https://fhir.example.com/r4", "eyJhbGciOi...")
//
//	  // Or with client credentials. The token endpoint is {AuthURL}/oauth2/token;
//	  // without AuthURL or TokenURL it is discovered from the server's
//	  // /.well-known/smart-configuration.
//	  cli, err = fhirclient.New(ctx, &fhir.Config{
//	    BaseURL:      "https://fhir.example.com/r4",
//	    AuthURL:      "https://auth.example.com",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    Scope:        "system/*.read",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Generate the document for a patient: the patient's Composition is looked
//	  // up first, then $document runs on it.
//	  doc, err := cli.Operation("$document").ForSubject("123").Execute(ctx)
//	  if err != nil { log.Fatal(err) }
//	  if doc.NotFound { log.Print("patient has no composition") }
//	}
//
// # Authentication precedence
//
//  1. AccessToken: sent as a static Bearer token.
//  2. ClientID/ClientSecret: exchanged with the client_credentials grant.
//  3. Nothing: calls are sent unauthenticated.
//
// # Errors
//
// Construction errors wrap fhir.ErrConfigRequired, fhir.ErrBaseURLRequired,
// fhir.ErrInvalidConfig, or the discovery errors fhir.ErrDiscoveryRequestFailed
// and fhir.ErrNoTokenEndpoint.
package fhirclient
