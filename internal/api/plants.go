package api

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
)

// PageOptions selects a page of a list endpoint. Nil fields are omitted; a
// set field is sent as given, zero included.
type PageOptions struct {
	Page *int
	Size *int
}

// Pages is shorthand for PageOptions with both fields set.
func Pages(page, size int) PageOptions {
	return PageOptions{Page: &page, Size: &size}
}

func (o PageOptions) query() Query {
	var q Query
	if o.Page != nil {
		q = q.Add("page", strconv.Itoa(*o.Page))
	}
	if o.Size != nil {
		q = q.Add("size", strconv.Itoa(*o.Size))
	}
	return q
}

// List lists plants visible to the session.
func (s PlantsService) List(ctx context.Context, opts PageOptions) (*PlantList, error) {
	return listPlants(ctx, s, opts)
}

func listPlants(ctx context.Context, r Requester, opts PageOptions) (*PlantList, error) {
	var result PlantList
	if err := r.do(ctx, getEndpoint("api/v3/plants", opts.query()), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListV2 lists plants through the v2 information endpoint.
func (s PlantsService) ListV2(ctx context.Context, opts PageOptions) ([]PlantV2, error) {
	var result []PlantV2
	if err := s.do(ctx, getEndpoint("api/v2/information/plants", opts.query()), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get gets one plant.
func (s PlantsService) Get(ctx context.Context, plantID string) (*Plant, error) {
	return getPlant(ctx, s, plantID)
}

func getPlant(ctx context.Context, r Requester, plantID string) (*Plant, error) {
	var result Plant
	if err := r.do(ctx, getEndpoint("api/v3/plants/"+EncodeSegment(plantID), nil), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetV2 gets one plant in the legacy shape.
func (s PlantsService) GetV2(ctx context.Context, plantID string) (*PlantV2, error) {
	var result PlantV2
	if err := s.do(ctx, getEndpoint("api/v2/information/plants/"+EncodeSegment(plantID), nil), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create creates a plant. Servers still answering in the legacy shape are
// converted to the v3 shape.
func (s PlantsService) Create(ctx context.Context, input CreatePlantInput) (*Plant, error) {
	return createPlant(ctx, s, input)
}

func createPlant(ctx context.Context, r Requester, input CreatePlantInput) (*Plant, error) {
	var raw json.RawMessage
	if err := r.do(ctx, postEndpoint("api/v3/plants", input), &raw); err != nil {
		return nil, err
	}
	return decodeCreatedPlant(raw)
}

// decodeCreatedPlant accepts both shapes: organization as an object (v3) or
// as an ID string next to organizationData (legacy).
func decodeCreatedPlant(raw json.RawMessage) (*Plant, error) {
	var probe struct {
		Organization json.RawMessage `json:"organization"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &DecodeError{Err: err}
	}
	org := bytes.TrimSpace(probe.Organization)
	if len(org) > 0 && org[0] == '"' {
		var legacy PlantV2
		if err := decodeJSON(raw, &legacy); err != nil {
			return nil, err
		}
		plant := legacy.ToV3()
		return &plant, nil
	}
	var plant Plant
	if err := decodeJSON(raw, &plant); err != nil {
		return nil, err
	}
	return &plant, nil
}

// Blueprint returns the v3 blueprint document as text. A JSON-string body
// is unwrapped.
func (s PlantsService) Blueprint(ctx context.Context, plantID, date string) (string, error) {
	ep := getEndpoint("api/v3/plants/"+EncodeSegment(plantID)+"/blueprint", Query{}.Add("date", date))
	return s.doText(ctx, ep, true)
}

// BlueprintV2 returns the v2 blueprint body as raw text.
func (s PlantsService) BlueprintV2(ctx context.Context, plantID, date string) (string, error) {
	ep := getEndpoint("api/v2/blueprint/plants/"+EncodeSegment(plantID), Query{}.Add("date", date))
	return s.doText(ctx, ep, false)
}
