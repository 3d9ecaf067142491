package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// Each chain is a sequence of small stage values sharing one descriptor. The
// stage types only expose the methods valid next; descriptor.check covers
// what the types cannot, such as reuse after the terminal call.

// search chain

type searchStage struct {
	client *Client
	desc   *descriptor
}

func (s *searchStage) ForResource(resourceType string) fhir.SearchTarget {
	if s.desc.check(fhir.ModeSearch, stageEntered, "ForResource") {
		setResourceType(s.desc, resourceType)
	}

	return &searchTarget{client: s.client, desc: s.desc}
}

type searchTarget struct {
	client *Client
	desc   *descriptor
}

func (s *searchTarget) WithParam(key, value string) fhir.SearchTarget {
	if s.desc.check(fhir.ModeSearch, stageTargeted, "WithParam") {
		s.desc.addFilter(fhir.Filter{Key: key, Value: value})
	}

	return s
}

func (s *searchTarget) WithSystemParam(key, system, value string) fhir.SearchTarget {
	if s.desc.check(fhir.ModeSearch, stageTargeted, "WithSystemParam") {
		s.desc.addFilter(fhir.Filter{Key: key, Value: value, System: system})
	}

	return s
}

func (s *searchTarget) URL() (string, error) {
	if !s.desc.check(fhir.ModeSearch, stageTargeted, "URL") {
		return "", s.desc.err
	}

	return s.client.resolver.searchURL(s.desc.resourceType, s.desc.filters), nil
}

func (s *searchTarget) Execute(ctx context.Context) ([]json.RawMessage, error) {
	err := s.desc.finish(fhir.ModeSearch, stageTargeted, "Execute")
	if err != nil {
		return nil, err
	}

	return s.client.executeSearch(ctx, s.desc)
}

func (s *searchTarget) AsList(ctx context.Context) ([]json.RawMessage, error) {
	return s.Execute(ctx)
}

// read chain

type readStage struct {
	client *Client
	desc   *descriptor
}

func (s *readStage) ForResource(resourceType string) fhir.ReadTarget {
	if s.desc.check(fhir.ModeRead, stageEntered, "ForResource") {
		setResourceType(s.desc, resourceType)
	}

	return &readTarget{client: s.client, desc: s.desc}
}

type readTarget struct {
	client *Client
	desc   *descriptor
}

func (s *readTarget) WithID(id string) fhir.ReadReady {
	if s.desc.check(fhir.ModeRead, stageTargeted, "WithID") {
		if strings.TrimSpace(id) == "" {
			s.desc.fail("resource id is empty")
		}

		s.desc.resourceID = id
		s.desc.stage = stageReady
	}

	return &readReady{client: s.client, desc: s.desc}
}

type readReady struct {
	client *Client
	desc   *descriptor
}

func (s *readReady) URL() (string, error) {
	if !s.desc.check(fhir.ModeRead, stageReady, "URL") {
		return "", s.desc.err
	}

	return s.client.resolver.readURL(s.desc.resourceType, s.desc.resourceID), nil
}

func (s *readReady) Execute(ctx context.Context) (*fhir.Result, error) {
	err := s.desc.finish(fhir.ModeRead, stageReady, "Execute")
	if err != nil {
		return nil, err
	}

	return s.client.executeRead(ctx, s.desc)
}

// create chain

type createStage struct {
	client *Client
	desc   *descriptor
}

func (s *createStage) ForResource(resourceType string) fhir.CreateTarget {
	if s.desc.check(fhir.ModeCreate, stageEntered, "ForResource") {
		setResourceType(s.desc, resourceType)
	}

	return &createTarget{client: s.client, desc: s.desc}
}

type createTarget struct {
	client *Client
	desc   *descriptor
}

func (s *createTarget) Body(ctx context.Context, payload interface{}) (*fhir.Result, error) {
	if payload == nil {
		s.desc.fail("Body requires a payload")
	}

	err := s.desc.finish(fhir.ModeCreate, stageTargeted, "Body")
	if err != nil {
		return nil, err
	}

	return s.client.executeCreate(ctx, s.desc, payload)
}

// operation chain

type operationStage struct {
	client *Client
	desc   *descriptor
}

func (s *operationStage) ResourceID(id string) fhir.OperationReady {
	if s.desc.check(fhir.ModeOperation, stageTargeted, "ResourceID") {
		if strings.TrimSpace(id) == "" {
			s.desc.fail("resource id is empty")
		}

		s.desc.resourceID = id
		s.desc.stage = stageReady
	}

	return &operationReady{client: s.client, desc: s.desc}
}

func (s *operationStage) ForSubject(subjectID string) fhir.OperationReady {
	if s.desc.check(fhir.ModeOperation, stageTargeted, "ForSubject") {
		if strings.TrimSpace(subjectID) == "" {
			s.desc.fail("subject id is empty")
		}

		s.desc.subjectID = subjectID
		s.desc.stage = stageReady
	}

	return &operationReady{client: s.client, desc: s.desc}
}

type operationReady struct {
	client *Client
	desc   *descriptor
}

func (s *operationReady) Execute(ctx context.Context) (*fhir.Result, error) {
	err := s.desc.finish(fhir.ModeOperation, stageReady, "Execute")
	if err != nil {
		return nil, err
	}

	return s.client.executeOperation(ctx, s.desc)
}

func setResourceType(desc *descriptor, resourceType string) {
	if strings.TrimSpace(resourceType) == "" {
		desc.fail("resource type is empty")
	}

	desc.resourceType = resourceType
	desc.stage = stageTargeted
}
