package schema

func init() {
	RegisterDefaults()
}

// RegisterDefaults registers the built-in PATCH document schemas.
func RegisterDefaults() {
	registerPlant()
	registerRegistryRecord()
	registerMetrics()
	registerInverterLog()
	registerHealthLevel()
}

func metricsHeader(desc string, unit, interval string, item *Schema) *Schema {
	return Object(desc, map[string]*Schema{
		"plant_id": String("Plant the samples belong to"),
		"unit":     Enum("Aggregation unit", unit),
		"interval": Enum("Sample interval", interval),
		"source":   String("Metrics source, usually device"),
		"date":     String("Requested day (YYYY-MM-DD)"),
		"before":   Int("Days before date included in the range"),
		"data":     Array(item, "Samples"),
	}, "unit", "interval")
}

func registerMetrics() {
	Register("metrics/panel-5m", metricsHeader("Panel samples every 5 minutes", "panel", "5m", Object(
		"One panel sample",
		map[string]*Schema{
			"id":                String("Panel asset ID"),
			"date":              String("Sample time"),
			"timestamp":         Timestamp("Sample time"),
			"energy":            Number("Energy in the interval (Wh)"),
			"cumulative_energy": Number("Energy since midnight (Wh)"),
			"i_out":             Number("Output current (A)"),
			"p":                 Number("Power (W)"),
			"v_in":              Number("Input voltage (V)"),
			"v_out":             Number("Output voltage (V)"),
			"temp":              Number("Module temperature (°C)"),
		},
		"id", "date", "timestamp", "energy", "cumulative_energy", "i_out", "p", "v_in", "v_out", "temp",
	)))

	Register("metrics/panel-day", metricsHeader("Daily panel energy", "panel", "day", Object(
		"Energy of one panel",
		map[string]*Schema{
			"id":     String("Panel asset ID"),
			"energy": Number("Energy of the day (Wh)"),
		},
		"id", "energy",
	)))

	Register("metrics/inverter-5m", metricsHeader("Inverter samples every 5 minutes", "inverter", "5m", Object(
		"One inverter sample",
		map[string]*Schema{
			"id":        String("Inverter asset ID"),
			"time":      String("Sample time"),
			"energy":    Number("Energy in the interval (Wh)"),
			"timestamp": Number("Sample time (Unix seconds, may be fractional)"),
		},
		"id", "time", "energy", "timestamp",
	)))

	Register("metrics/inverter-day", metricsHeader("Daily inverter energy", "inverter", "day", Object(
		"Energy of one inverter",
		map[string]*Schema{
			"id":     String("Inverter asset ID"),
			"date":   String("Day"),
			"energy": Number("Energy of the day (Wh)"),
		},
		"id", "date", "energy",
	)))

	Register("metrics/plant-5m", metricsHeader("Plant samples every 5 minutes", "plant", "5m", Object(
		"One plant sample",
		map[string]*Schema{
			"date":              String("Sample time"),
			"energy":            Number("Energy in the interval (Wh)"),
			"cumulative_energy": Number("Energy since midnight (Wh)"),
			"timestamp":         Timestamp("Sample time"),
		},
		"date", "energy", "cumulative_energy", "timestamp",
	)))

	Register("metrics/plant-day", metricsHeader("Aggregated plant energy", "plant", "day", Object(
		"Energy of one day",
		map[string]*Schema{
			"energy": Number("Energy of the day (Wh)"),
			"date":   String("Day"),
			"id":     String("Optional group ID"),
		},
		"energy", "date",
	)))
}

func registerPlant() {
	org := Object("Owning organization", map[string]*Schema{
		"id":   String("Organization ID"),
		"name": String("Organization name"),
		"icon": String("Icon URL"),
		"logo": String("Logo URL"),
	}, "id")

	Register("plant", Object(
		"A solar plant",
		map[string]*Schema{
			"id":           String("Plant ID"),
			"name":         String("Display name"),
			"organization": org,
			"created":      String("Creation time"),
			"updated":      String("Last update time"),
			"metadata":     Map("Free-form metadata"),
			"images":       Array(String("Image URL"), "Plant images"),
		},
		"id", "name",
	))
}

func registerRegistryRecord() {
	Register("registry-record", Object(
		"An asset registration entry",
		map[string]*Schema{
			"asset_id":     String("Asset ID"),
			"asset_type":   String("Asset kind such as panel or inverter"),
			"map_id":       String("Position on the plant map"),
			"map_type":     String("Map element kind"),
			"registered":   String("Registration time"),
			"unregistered": String("Removal time, empty while registered"),
			"tag":          Map("Arbitrary tag document"),
		},
		"asset_id", "asset_type",
	))
}

func registerInverterLog() {
	Register("inverter-log", Object(
		"An inverter log entry",
		map[string]*Schema{
			"plantId":    String("Plant ID"),
			"inverterId": String("Inverter asset ID"),
			"level":      String("Severity"),
			"timestamp":  String("Event time"),
			"message": Object("Localized message", map[string]*Schema{
				"ko": String("Korean message text"),
			}),
			"raw": Object("Raw inverter status", map[string]*Schema{
				"status": String("Status code"),
				"code":   String("Vendor code"),
				"lcd":    String("LCD text"),
				"value":  Map("Raw value"),
			}, "status"),
		},
		"inverterId", "level", "timestamp",
	))
}

func registerHealthLevel() {
	category := func(desc string) *Schema {
		return Object(desc, map[string]*Schema{
			"count": Int("Number of assets"),
			"ids":   Array(String("Asset ID"), "Assets in this bucket"),
		}, "count")
	}
	Register("health-level", Object(
		"Assets grouped by health",
		map[string]*Schema{
			"best":    category("Healthy assets"),
			"caution": category("Assets needing attention"),
			"faulty":  category("Faulty assets"),
		},
		"best", "caution", "faulty",
	))
}
