package api

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// MetricsQuery selects a metrics series by date.
type MetricsQuery struct {
	Source   string
	Unit     string
	Interval string
	Date     string
	// Before is sent only when non-nil.
	Before *int64
	// Fields is sent as one comma-joined value.
	Fields []string
}

func (q MetricsQuery) path(prefix, plantID string, v2 bool) string {
	series := EncodeSegment(q.Unit) + "-" + EncodeSegment(q.Interval)
	if v2 {
		return prefix + EncodeSegment(plantID) + "/" + EncodeSegment(q.Source) + "/" + series
	}
	return prefix + EncodeSegment(plantID) + "/metrics/" + EncodeSegment(q.Source) + "/" + series
}

func (q MetricsQuery) query() Query {
	query := Query{}.Add("date", q.Date)
	if q.Before != nil {
		query = query.Add("before", strconv.FormatInt(*q.Before, 10))
	}
	if len(q.Fields) > 0 {
		query = query.Add("fields", strings.Join(q.Fields, ","))
	}
	return query
}

// ByDate fetches a metrics series and decodes it by unit and interval.
func (s MetricsService) ByDate(ctx context.Context, plantID string, q MetricsQuery) (MetricsBody, error) {
	return metricsByDate(ctx, s, q.path("api/v3/plants/", plantID, false), q.query())
}

// ByDateV2 fetches a metrics series through the v2 endpoint. The payload
// shapes match v3 and go through the same dispatch.
func (s MetricsService) ByDateV2(ctx context.Context, plantID string, q MetricsQuery) (MetricsBody, error) {
	return metricsByDate(ctx, s, q.path("api/v2/metrics/plants/", plantID, true), q.query())
}

func metricsByDate(ctx context.Context, r Requester, path string, query Query) (MetricsBody, error) {
	var raw json.RawMessage
	if err := r.do(ctx, getEndpoint(path, query), &raw); err != nil {
		return nil, err
	}
	return DecodeMetricsBody(raw)
}

// Panel fetches the 5-minute panel series of a plant from device data.
func (s MetricsService) Panel(ctx context.Context, plantID, date string) (*PanelIntradayMetrics, error) {
	body, err := s.ByDate(ctx, plantID, MetricsQuery{
		Source:   "device",
		Unit:     UnitPanel,
		Interval: Interval5m,
		Date:     date,
	})
	if err != nil {
		return nil, err
	}
	return PanelMetricsFrom(body)
}

// LatestDeviceOptions filters the latest device readings.
type LatestDeviceOptions struct {
	IncludeState *bool
	Ago          *int64
}

func (o LatestDeviceOptions) query() Query {
	var q Query
	if o.IncludeState != nil {
		q = q.Add("includeState", strconv.FormatBool(*o.IncludeState))
	}
	if o.Ago != nil {
		q = q.Add("ago", strconv.FormatInt(*o.Ago, 10))
	}
	return q
}

// LatestDevice returns the latest reading of every device in a plant.
func (s MetricsService) LatestDevice(ctx context.Context, plantID string, opts LatestDeviceOptions) ([]LatestDevice, error) {
	return latestDevice(ctx, s, "api/v3/plants/"+EncodeSegment(plantID)+"/metrics/device/latest", opts)
}

// LatestDeviceV2 is LatestDevice through the v2 endpoint.
func (s MetricsService) LatestDeviceV2(ctx context.Context, plantID string, opts LatestDeviceOptions) ([]LatestDevice, error) {
	return latestDevice(ctx, s, "api/v2/metrics/plants/"+EncodeSegment(plantID)+"/device/latest", opts)
}

func latestDevice(ctx context.Context, r Requester, path string, opts LatestDeviceOptions) ([]LatestDevice, error) {
	var result []LatestDevice
	if err := r.do(ctx, getEndpoint(path, opts.query()), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestInverter returns the latest state of every inverter in a plant.
func (s MetricsService) LatestInverter(ctx context.Context, plantID string) ([]LatestInverter, error) {
	return latestInverter(ctx, s, "api/v3/plants/"+EncodeSegment(plantID)+"/metrics/inverter/latest")
}

// LatestInverterV2 is LatestInverter through the v2 endpoint.
func (s MetricsService) LatestInverterV2(ctx context.Context, plantID string) ([]LatestInverter, error) {
	return latestInverter(ctx, s, "api/v2/metrics/plants/"+EncodeSegment(plantID)+"/inverter/latest")
}

func latestInverter(ctx context.Context, r Requester, path string) ([]LatestInverter, error) {
	var result []LatestInverter
	if err := r.do(ctx, getEndpoint(path, nil), &result); err != nil {
		return nil, err
	}
	return result, nil
}
