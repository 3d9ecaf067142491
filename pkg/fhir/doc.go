// Package fhir provides types, interfaces, and helpers for building and
// running queries against a FHIR REST server.
//
// # Overview
//
// The fhir package defines the query builder surface (QueryBuilder and its
// stage interfaces), the Transport contract, the search envelope (Bundle), the
// normalized Result, and the error taxonomy. A concrete implementation is
// provided by the fhirclient package, which wires configuration, transport,
// and authentication. Most consumers should import fhirclient to construct a
// client and then interact with the interfaces exposed here.
//
// Getting a client
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
//	  cli, err := fhirclient.New(ctx, &fhir.Config{BaseURL: "https://fhir.example.com/r4"})
//	  if err != nil { log.Fatal(err) }
//
//	  patients, err := cli.Search().
//	    ForResource("Patient").
//	    WithParam("name", "Donald").
//	    WithSystemParam("identifier", "http://acme.org/mrns", "2216120").
//	    Execute(ctx)
//	  if err != nil { log.Fatal(err) }
//	  _ = patients
//	}
//
// # Chains
//
// Every entry method (Search, Read, Create, Operation) starts a chain that owns
// its own request descriptor. Each step returns only the methods that are valid
// next, so most invalid chains do not compile. Misuse the type system cannot
// catch, such as an empty resource type or a chain used again after its
// terminal call, is reported as ErrInvalidChainState before any request is sent.
//
// # Results
//
// Search returns the embedded resources of the result bundle in server order,
// or an empty slice when the bundle reports no matches. Read, Create, and
// Operation return a Result carrying the raw payload. A read answered with 404,
// or an operation whose subject has no anchor resource, yields a Result with
// NotFound set instead of an error.
//
// # Errors
//
// Failed HTTP exchanges are reported as *TransportError, which matches
// ErrTransportFailure with errors.Is and carries the server's OperationOutcome
// when one was returned. Helpers such as IsNotFound, IsUnauthorized, and
// IsForbidden branch on common cases.
//
// # Interceptors
//
// InterceptorChain holds request and response hooks run by the built-in
// transport around every call, with ready-made interceptors for logging,
// static headers, and per-endpoint metrics.
package fhir
