package api

import (
	"context"
)

// RegistrySnapshots is the record type for point-in-time registrations.
const RegistrySnapshots = "snapshots"

// RegistryQuery selects asset registrations of a plant.
type RegistryQuery struct {
	RecordType string
	Date       string
	AssetID    string
	MapID      string
}

func (q RegistryQuery) recordType() string {
	if q.RecordType == "" {
		return RegistrySnapshots
	}
	return q.RecordType
}

func (q RegistryQuery) query() Query {
	return Query{}.Add("date", q.Date).
		AddNonEmpty("asset_id", q.AssetID).
		AddNonEmpty("map_id", q.MapID)
}

// Get returns registrations of a plant. A null body yields an empty slice.
func (s RegistryService) Get(ctx context.Context, plantID string, q RegistryQuery) ([]RegistryRecord, error) {
	path := "api/v3/plants/" + EncodeSegment(plantID) + "/registry/" + EncodeSegment(q.recordType())
	return getRegistry(ctx, s, path, q)
}

// GetV2 returns registrations through the v2 endpoint.
func (s RegistryService) GetV2(ctx context.Context, plantID string, q RegistryQuery) ([]RegistryRecord, error) {
	path := "api/v2/registry/plants/" + EncodeSegment(plantID) + "/" + EncodeSegment(q.recordType())
	return getRegistry(ctx, s, path, q)
}

func getRegistry(ctx context.Context, r Requester, path string, q RegistryQuery) ([]RegistryRecord, error) {
	var result []RegistryRecord
	if err := r.do(ctx, getEndpoint(path, q.query()), &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = []RegistryRecord{}
	}
	return result, nil
}
