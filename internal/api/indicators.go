package api

import (
	"context"
	"encoding/json"
)

// HealthLevel returns asset health buckets for a unit on a date.
// view is sent only when set.
func (s IndicatorsService) HealthLevel(ctx context.Context, plantID, unit, date, view string) (*HealthLevel, error) {
	path := "api/v3/plants/" + EncodeSegment(plantID) + "/indicator/health-level/" + EncodeSegment(unit)
	query := Query{}.Add("date", date).AddNonEmpty("view", view)
	var result HealthLevel
	if err := s.do(ctx, getEndpoint(path, query), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PanelSeqnum returns the panel sequence-number indicator as raw JSON.
func (s IndicatorsService) PanelSeqnum(ctx context.Context, plantID, date string) (json.RawMessage, error) {
	path := "api/v3/plants/" + EncodeSegment(plantID) + "/indicator/seqnum"
	var result json.RawMessage
	if err := s.do(ctx, getEndpoint(path, Query{}.Add("date", date)), &result); err != nil {
		return nil, err
	}
	return result, nil
}
