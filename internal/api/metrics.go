package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by DecodeError when a required field is absent or null.
var ErrMissingField = errors.New("required field missing")

// Metrics units and intervals recognised by DecodeMetricsBody.
const (
	UnitPanel    = "panel"
	UnitInverter = "inverter"
	UnitPlant    = "plant"

	Interval5m  = "5m"
	IntervalDay = "day"
)

// MetricsBody is one of the metrics payload shapes selected by unit and interval:
// *PanelIntraday, *PanelDaily, *InverterIntraday, *InverterDaily,
// *PlantIntraday, *PlantAggregated, or *UnknownMetrics.
type MetricsBody interface {
	Header() MetricsHeader
	metricsBody()
}

// MetricsHeader holds the fields shared by every metrics payload.
type MetricsHeader struct {
	PlantID  string `json:"plant_id"`
	Unit     string `json:"unit"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Interval string `json:"interval"`
	Before   *int64 `json:"before,omitempty"`
}

// Header returns the shared header fields.
func (h MetricsHeader) Header() MetricsHeader { return h }

var metricsHeaderFields = []string{"plant_id", "unit", "source", "date", "interval"}

// PanelData is one 5-minute sample of a panel.
type PanelData struct {
	ID               string  `json:"id"`
	Date             string  `json:"date"`
	Timestamp        int64   `json:"timestamp"`
	Energy           float64 `json:"energy"`
	CumulativeEnergy float64 `json:"cumulative_energy"`
	IOut             float64 `json:"i_out"`
	P                float64 `json:"p"`
	VIn              float64 `json:"v_in"`
	VOut             float64 `json:"v_out"`
	Temp             float64 `json:"temp"`
}

var panelDataFields = []string{"id", "date", "timestamp", "energy", "cumulative_energy", "i_out", "p", "v_in", "v_out", "temp"}

// PanelDailyData is the daily energy of a panel.
type PanelDailyData struct {
	ID     string  `json:"id"`
	Energy float64 `json:"energy"`
}

var panelDailyDataFields = []string{"id", "energy"}

// InverterData is one 5-minute sample of an inverter.
type InverterData struct {
	ID        string  `json:"id"`
	Time      string  `json:"time"`
	Energy    float64 `json:"energy"`
	Timestamp float64 `json:"timestamp"`
}

var inverterDataFields = []string{"id", "time", "energy", "timestamp"}

// InverterDailyData is the daily energy of an inverter.
type InverterDailyData struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Energy float64 `json:"energy"`
}

var inverterDailyDataFields = []string{"id", "date", "energy"}

// PlantData is one 5-minute sample of a whole plant.
type PlantData struct {
	Date             string  `json:"date"`
	Energy           float64 `json:"energy"`
	CumulativeEnergy float64 `json:"cumulative_energy"`
	Timestamp        int64   `json:"timestamp"`
}

var plantDataFields = []string{"date", "energy", "cumulative_energy", "timestamp"}

// PlantDailyData is an aggregated plant energy value.
type PlantDailyData struct {
	Energy float64 `json:"energy"`
	Date   string  `json:"date"`
	ID     *string `json:"id,omitempty"`
}

var plantDailyDataFields = []string{"energy", "date"}

// PanelIntraday is unit=panel, interval=5m.
type PanelIntraday struct {
	MetricsHeader
	Data []PanelData `json:"data,omitempty"`
}

// PanelDaily is unit=panel, interval=day.
type PanelDaily struct {
	MetricsHeader
	Data []PanelDailyData `json:"data,omitempty"`
}

// InverterIntraday is unit=inverter, interval=5m.
type InverterIntraday struct {
	MetricsHeader
	Data []InverterData `json:"data,omitempty"`
}

// InverterDaily is unit=inverter, interval=day.
type InverterDaily struct {
	MetricsHeader
	Data []InverterDailyData `json:"data,omitempty"`
}

// PlantIntraday is unit=plant, interval=5m.
type PlantIntraday struct {
	MetricsHeader
	Data []PlantData `json:"data,omitempty"`
}

// PlantAggregated is unit=plant, interval=day.
type PlantAggregated struct {
	MetricsHeader
	Data []PlantDailyData `json:"data,omitempty"`
}

// UnknownMetrics keeps a payload whose unit/interval pair is not recognised.
type UnknownMetrics struct {
	Unit     string
	Interval string
	Raw      json.RawMessage
}

// Header returns the discriminants that were readable.
func (u *UnknownMetrics) Header() MetricsHeader {
	return MetricsHeader{Unit: u.Unit, Interval: u.Interval}
}

// MarshalJSON emits the original document unchanged.
func (u *UnknownMetrics) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

func (*PanelIntraday) metricsBody()    {}
func (*PanelDaily) metricsBody()       {}
func (*InverterIntraday) metricsBody() {}
func (*InverterDaily) metricsBody()    {}
func (*PlantIntraday) metricsBody()    {}
func (*PlantAggregated) metricsBody()  {}
func (*UnknownMetrics) metricsBody()   {}

// PanelIntradayMetrics is the panel 5-minute shortcut result.
type PanelIntradayMetrics struct {
	PlantID string      `json:"plant_id"`
	Date    string      `json:"date"`
	Data    []PanelData `json:"data"`
}

// metricsKind is the (unit, interval) pair a metrics body is dispatched on.
type metricsKind struct {
	unit, interval string
}

// DecodeMetricsBody dispatches on the unit and interval fields, then checks
// the required fields of the selected shape. A missing field fails with a
// DecodeError naming it. Unrecognised pairs decode to *UnknownMetrics.
func DecodeMetricsBody(raw []byte) (MetricsBody, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("metrics body is not a JSON object: %w", err)}
	}
	if top == nil {
		return nil, &DecodeError{Err: errors.New("metrics body is null")}
	}

	unit := stringMember(top, "unit")
	interval := stringMember(top, "interval")

	switch metricsKind{unit, interval} {
	case metricsKind{UnitPanel, Interval5m}:
		header, data, err := decodeMetrics[PanelData](raw, top, panelDataFields)
		if err != nil {
			return nil, err
		}
		return &PanelIntraday{MetricsHeader: header, Data: data}, nil
	case metricsKind{UnitPanel, IntervalDay}:
		header, data, err := decodeMetrics[PanelDailyData](raw, top, panelDailyDataFields)
		if err != nil {
			return nil, err
		}
		return &PanelDaily{MetricsHeader: header, Data: data}, nil
	case metricsKind{UnitInverter, Interval5m}:
		header, data, err := decodeMetrics[InverterData](raw, top, inverterDataFields)
		if err != nil {
			return nil, err
		}
		return &InverterIntraday{MetricsHeader: header, Data: data}, nil
	case metricsKind{UnitInverter, IntervalDay}:
		header, data, err := decodeMetrics[InverterDailyData](raw, top, inverterDailyDataFields)
		if err != nil {
			return nil, err
		}
		return &InverterDaily{MetricsHeader: header, Data: data}, nil
	case metricsKind{UnitPlant, Interval5m}:
		header, data, err := decodeMetrics[PlantData](raw, top, plantDataFields)
		if err != nil {
			return nil, err
		}
		return &PlantIntraday{MetricsHeader: header, Data: data}, nil
	case metricsKind{UnitPlant, IntervalDay}:
		header, data, err := decodeMetrics[PlantDailyData](raw, top, plantDailyDataFields)
		if err != nil {
			return nil, err
		}
		return &PlantAggregated{MetricsHeader: header, Data: data}, nil
	default:
		return &UnknownMetrics{
			Unit:     unit,
			Interval: interval,
			Raw:      append(json.RawMessage(nil), bytes.TrimSpace(raw)...),
		}, nil
	}
}

// PanelMetricsFrom requires body to be panel 5-minute metrics with data present.
func PanelMetricsFrom(body MetricsBody) (*PanelIntradayMetrics, error) {
	panel, ok := body.(*PanelIntraday)
	if !ok {
		got := "nil"
		if body != nil {
			h := body.Header()
			got = fmt.Sprintf("unit=%q interval=%q", h.Unit, h.Interval)
		}
		return nil, &DecodeError{Err: fmt.Errorf("expected panel 5m metrics, got %s", got)}
	}
	if panel.Data == nil {
		return nil, &DecodeError{Field: "data", Err: ErrMissingField}
	}
	return &PanelIntradayMetrics{
		PlantID: panel.PlantID,
		Date:    panel.Date,
		Data:    panel.Data,
	}, nil
}

func decodeMetrics[T any](raw []byte, top map[string]json.RawMessage, itemFields []string) (MetricsHeader, []T, error) {
	var header MetricsHeader
	for _, name := range metricsHeaderFields {
		if isAbsent(top[name]) {
			return header, nil, &DecodeError{Field: name, Err: ErrMissingField}
		}
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return header, nil, &DecodeError{Field: jsonErrorField(err), Err: err}
	}

	rawData := top["data"]
	if isAbsent(rawData) {
		return header, nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawData, &items); err != nil {
		return header, nil, &DecodeError{Field: "data", Err: err}
	}

	data := make([]T, 0, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("data[%d]", i)
		var members map[string]json.RawMessage
		if err := json.Unmarshal(item, &members); err != nil || members == nil {
			if err == nil {
				err = errors.New("item is null")
			}
			return header, nil, &DecodeError{Field: prefix, Err: err}
		}
		for _, name := range itemFields {
			if isAbsent(members[name]) {
				return header, nil, &DecodeError{Field: prefix + "." + name, Err: ErrMissingField}
			}
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			field := prefix
			if f := jsonErrorField(err); f != "" {
				field += "." + f
			}
			return header, nil, &DecodeError{Field: field, Err: err}
		}
		data = append(data, v)
	}
	return header, data, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func stringMember(top map[string]json.RawMessage, name string) string {
	var s string
	if err := json.Unmarshal(top[name], &s); err != nil {
		return ""
	}
	return s
}
