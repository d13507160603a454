package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func metricsDoc(unit, interval, data string) string {
	return fmt.Sprintf(`{"plant_id":"p1","unit":%q,"source":"device","date":"2026-03-01","interval":%q,"data":%s}`, unit, interval, data)
}

func TestDecodeMetricsBody_Variants(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		validate func(*testing.T, MetricsBody)
	}{
		{
			name: "panel 5m",
			raw: metricsDoc("panel", "5m", `[{"id":"pn1","date":"2026-03-01T10:00:00","timestamp":1772359200,
				"energy":1.5,"cumulative_energy":10.25,"i_out":2.1,"p":300,"v_in":38.2,"v_out":37.9,"temp":41}]`),
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*PanelIntraday)
				if !ok {
					t.Fatalf("got %T", b)
				}
				if len(m.Data) != 1 || m.Data[0].ID != "pn1" || m.Data[0].P != 300 || m.Data[0].Timestamp != 1772359200 {
					t.Errorf("data = %+v", m.Data)
				}
				if m.PlantID != "p1" || m.Source != "device" {
					t.Errorf("header = %+v", m.MetricsHeader)
				}
			},
		},
		{
			name: "panel day",
			raw:  metricsDoc("panel", "day", `[{"id":"pn1","energy":3.2}]`),
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*PanelDaily)
				if !ok || m.Data[0].Energy != 3.2 {
					t.Fatalf("got %#v", b)
				}
			},
		},
		{
			name: "inverter 5m",
			raw:  metricsDoc("inverter", "5m", `[{"id":"inv1","time":"10:05","energy":0.4,"timestamp":1772359500.5}]`),
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*InverterIntraday)
				if !ok || m.Data[0].Time != "10:05" || m.Data[0].Timestamp != 1772359500.5 {
					t.Fatalf("got %#v", b)
				}
			},
		},
		{
			name: "inverter day",
			raw:  metricsDoc("inverter", "day", `[{"id":"inv1","date":"2026-03-01","energy":12}]`),
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*InverterDaily)
				if !ok || m.Data[0].Date != "2026-03-01" {
					t.Fatalf("got %#v", b)
				}
			},
		},
		{
			name: "plant 5m",
			raw:  metricsDoc("plant", "5m", `[{"date":"2026-03-01T10:00:00","energy":5,"cumulative_energy":50,"timestamp":1772359200}]`),
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*PlantIntraday)
				if !ok || m.Data[0].CumulativeEnergy != 50 {
					t.Fatalf("got %#v", b)
				}
			},
		},
		{
			name: "plant day with optional id",
			raw:  metricsDoc("plant", "day", `[{"energy":100,"date":"2026-03-01"},{"energy":90,"date":"2026-03-02","id":"agg"}]`),
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*PlantAggregated)
				if !ok || len(m.Data) != 2 {
					t.Fatalf("got %#v", b)
				}
				if m.Data[0].ID != nil {
					t.Errorf("first id = %v, want nil", *m.Data[0].ID)
				}
				if m.Data[1].ID == nil || *m.Data[1].ID != "agg" {
					t.Errorf("second id = %v", m.Data[1].ID)
				}
			},
		},
		{
			name: "data absent",
			raw:  `{"plant_id":"p1","unit":"panel","source":"device","date":"2026-03-01","interval":"5m"}`,
			validate: func(t *testing.T, b MetricsBody) {
				m, ok := b.(*PanelIntraday)
				if !ok || m.Data != nil {
					t.Fatalf("got %#v", b)
				}
			},
		},
		{
			name: "before kept",
			raw:  `{"plant_id":"p1","unit":"plant","source":"device","date":"2026-03-01","interval":"day","before":7,"data":[]}`,
			validate: func(t *testing.T, b MetricsBody) {
				h := b.Header()
				if h.Before == nil || *h.Before != 7 {
					t.Fatalf("before = %v", h.Before)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := DecodeMetricsBody([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeMetricsBody() error: %v", err)
			}
			tt.validate(t, body)
		})
	}
}

func TestDecodeMetricsBody_MissingFields(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantField string
	}{
		{
			name:      "missing item energy",
			raw:       metricsDoc("panel", "day", `[{"id":"pn1"}]`),
			wantField: "data[0].energy",
		},
		{
			name:      "null item field",
			raw:       metricsDoc("inverter", "day", `[{"id":"inv1","date":"2026-03-01","energy":1},{"id":"inv2","date":null,"energy":1}]`),
			wantField: "data[1].date",
		},
		{
			name:      "missing header source",
			raw:       `{"plant_id":"p1","unit":"plant","date":"2026-03-01","interval":"5m","data":[]}`,
			wantField: "source",
		},
		{
			name:      "null plant id",
			raw:       `{"plant_id":null,"unit":"panel","source":"device","date":"2026-03-01","interval":"day","data":[]}`,
			wantField: "plant_id",
		},
		{
			name:      "null item",
			raw:       metricsDoc("panel", "day", `[null]`),
			wantField: "data[0]",
		},
		{
			name:      "wrong item type",
			raw:       metricsDoc("panel", "day", `[{"id":"pn1","energy":"lots"}]`),
			wantField: "data[0].energy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMetricsBody([]byte(tt.raw))
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if decodeErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", decodeErr.Field, tt.wantField)
			}
		})
	}
}

func TestDecodeMetricsBody_Unknown(t *testing.T) {
	raw := `{"plant_id":"p1","unit":"mystery","source":"device","date":"2026-03-01","interval":"5m","data":[{"x":1}]}`
	body, err := DecodeMetricsBody([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMetricsBody() error: %v", err)
	}
	unknown, ok := body.(*UnknownMetrics)
	if !ok {
		t.Fatalf("got %T, want *UnknownMetrics", body)
	}
	if unknown.Unit != "mystery" || unknown.Interval != "5m" {
		t.Errorf("discriminants = %q %q", unknown.Unit, unknown.Interval)
	}
	out, err := json.Marshal(unknown)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != raw {
		t.Errorf("re-encoded = %s", out)
	}
}

func TestDecodeMetricsBody_NonStringDiscriminant(t *testing.T) {
	body, err := DecodeMetricsBody([]byte(`{"unit":5,"interval":"5m"}`))
	if err != nil {
		t.Fatalf("DecodeMetricsBody() error: %v", err)
	}
	if _, ok := body.(*UnknownMetrics); !ok {
		t.Fatalf("got %T", body)
	}
}

func TestDecodeMetricsBody_DispatchIsExactPair(t *testing.T) {
	pairs := [][2]string{
		{"panel-5m", ""},
		{"panel", "5m-"},
		{"panel", "day-5m"},
		{"", "panel-5m"},
		{"plant-day", "day"},
		{"Panel", "5m"},
	}
	for _, p := range pairs {
		body, err := DecodeMetricsBody([]byte(metricsDoc(p[0], p[1], "[]")))
		if err != nil {
			t.Errorf("%q/%q: error %v", p[0], p[1], err)
			continue
		}
		if _, ok := body.(*UnknownMetrics); !ok {
			t.Errorf("%q/%q decoded to %T, want *UnknownMetrics", p[0], p[1], body)
		}
	}
}

func TestDecodeMetricsBody_NotAnObject(t *testing.T) {
	for _, raw := range []string{`[]`, `null`, `"x"`, `{`} {
		if _, err := DecodeMetricsBody([]byte(raw)); !IsDecodeError(err) {
			t.Errorf("DecodeMetricsBody(%s) error = %v, want DecodeError", raw, err)
		}
	}
}

func TestPanelMetricsFrom(t *testing.T) {
	daily, err := DecodeMetricsBody([]byte(metricsDoc("panel", "day", `[]`)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PanelMetricsFrom(daily); !IsDecodeError(err) {
		t.Errorf("variant mismatch error = %v", err)
	}

	noData, err := DecodeMetricsBody([]byte(`{"plant_id":"p1","unit":"panel","source":"device","date":"2026-03-01","interval":"5m"}`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = PanelMetricsFrom(noData)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Field != "data" {
		t.Errorf("nil data error = %v", err)
	}

	if _, err := PanelMetricsFrom(nil); !IsDecodeError(err) {
		t.Errorf("nil body error = %v", err)
	}

	empty, err := DecodeMetricsBody([]byte(metricsDoc("panel", "5m", `[]`)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := PanelMetricsFrom(empty)
	if err != nil {
		t.Fatalf("PanelMetricsFrom() error: %v", err)
	}
	if got.PlantID != "p1" || got.Date != "2026-03-01" || len(got.Data) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestMetricsByDate_Request(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		writeJSON(w, 200, metricsDoc("inverter", "day", `[]`))
	}, Options{})
	c.SetSession("tok", AccountTypeManager)

	before := int64(3)
	body, err := c.Metrics().ByDate(context.Background(), "plant 1", MetricsQuery{
		Source:   "device",
		Unit:     "inverter",
		Interval: "day",
		Date:     "2026-03-01",
		Before:   &before,
		Fields:   []string{"energy", "id"},
	})
	if err != nil {
		t.Fatalf("ByDate() error: %v", err)
	}
	if _, ok := body.(*InverterDaily); !ok {
		t.Errorf("got %T", body)
	}
	if gotPath != "/api/v3/plants/plant%201/metrics/device/inverter-day" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "date=2026-03-01&before=3&fields=energy%2Cid" {
		t.Errorf("query = %s", gotQuery)
	}
}

func TestMetricsByDateV2_Request(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		writeJSON(w, 200, metricsDoc("plant", "5m", `[]`))
	}, Options{})

	_, err := c.Metrics().ByDateV2(context.Background(), "p1", MetricsQuery{
		Source: "device", Unit: "plant", Interval: "5m", Date: "2026-03-01",
	})
	if err != nil {
		t.Fatalf("ByDateV2() error: %v", err)
	}
	if gotPath != "/api/v2/metrics/plants/p1/device/plant-5m" || gotQuery != "date=2026-03-01" {
		t.Errorf("request = %s?%s", gotPath, gotQuery)
	}
}

func TestMetricsPanel(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, 200, metricsDoc("panel", "5m", `[{"id":"pn1","date":"d","timestamp":1,"energy":1,
			"cumulative_energy":1,"i_out":1,"p":1,"v_in":1,"v_out":1,"temp":1}]`))
	}, Options{})

	got, err := c.Metrics().Panel(context.Background(), "p1", "2026-03-01")
	if err != nil {
		t.Fatalf("Panel() error: %v", err)
	}
	if gotPath != "/api/v3/plants/p1/metrics/device/panel-5m" {
		t.Errorf("path = %s", gotPath)
	}
	if len(got.Data) != 1 || got.Data[0].ID != "pn1" {
		t.Errorf("data = %+v", got.Data)
	}
}

func TestMetricsPanel_WrongVariant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, metricsDoc("panel", "day", `[]`))
	}, Options{})

	if _, err := c.Metrics().Panel(context.Background(), "p1", "2026-03-01"); !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}
