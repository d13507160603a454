package api

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexInt handles JSON numbers that may come as strings or integers
type FlexInt int

func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	// Try as int first
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*fi = FlexInt(i)
		return nil
	}
	// Try as string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*fi = 0
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*fi = FlexInt(i)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexInt", data)
}

// FlexFloat handles JSON numbers that may come as strings or numbers
type FlexFloat float64

func (ff *FlexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*ff = FlexFloat(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*ff = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*ff = FlexFloat(f)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexFloat", data)
}

// Organization is an organization summary.
type Organization struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Logo  string `json:"logo,omitempty"`
	Owner string `json:"owner,omitempty"`
}

// AuthResponse is returned by the v3 password login.
type AuthResponse struct {
	Token         string          `json:"token"`
	AccountType   string          `json:"type"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	Username      string          `json:"username,omitempty"`
	Organizations []Organization  `json:"organizations,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// AuthBody is returned by the v2 logins and the token refresh.
type AuthBody struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// Account represents the logged-in account.
type Account struct {
	Name          string          `json:"name"`
	AccountType   string          `json:"type"`
	Email         string          `json:"email,omitempty"`
	Username      string          `json:"username,omitempty"`
	Organizations []Organization  `json:"organizations,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Plant is a plant in the v3 shape.
type Plant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Organization Organization    `json:"organization"`
	Created      string          `json:"created"`
	Updated      string          `json:"updated"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Images       []string        `json:"images,omitempty"`
}

// PlantV2 is a plant in the legacy v2 shape, where organization is an ID and
// the details sit in organizationData.
type PlantV2 struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Organization     string          `json:"organization"`
	OrganizationData Organization    `json:"organizationData"`
	Created          string          `json:"created"`
	Updated          string          `json:"updated"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	Images           []string        `json:"images,omitempty"`
}

// ToV3 converts a legacy plant to the v3 shape.
func (p PlantV2) ToV3() Plant {
	org := p.OrganizationData
	if org.ID == "" {
		org.ID = p.Organization
	}
	return Plant{
		ID:           p.ID,
		Name:         p.Name,
		Organization: org,
		Created:      p.Created,
		Updated:      p.Updated,
		Metadata:     p.Metadata,
		Images:       p.Images,
	}
}

// PlantList is a page of plants.
type PlantList struct {
	Items      []Plant `json:"items"`
	Page       int64   `json:"page"`
	PerPage    int64   `json:"perPage"`
	TotalItems int64   `json:"totalItems"`
	TotalPages int64   `json:"totalPages"`
}

// CreatePlantInput is the body of a plant creation.
type CreatePlantInput struct {
	Name           string          `json:"name"`
	OrganizationID string          `json:"organizationId"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// RegistryRecord is one asset registration entry.
type RegistryRecord struct {
	AssetID      string          `json:"asset_id"`
	AssetType    string          `json:"asset_type"`
	MapID        string          `json:"map_id"`
	MapType      string          `json:"map_type"`
	Registered   string          `json:"registered"`
	Tag          json.RawMessage `json:"tag,omitempty"`
	Unregistered string          `json:"unregistered"`
}

// LatestDeviceMetrics holds the electrical readings of a device.
type LatestDeviceMetrics struct {
	IOut FlexFloat `json:"i_out"`
	VIn  FlexFloat `json:"v_in"`
	VOut FlexFloat `json:"v_out"`
	Temp FlexFloat `json:"temp"`
}

// LatestDevice is the most recent reading of one device.
type LatestDevice struct {
	Timestamp string              `json:"timestamp"`
	AssetID   string              `json:"asset_id"`
	AssetType string              `json:"asset_type"`
	MapID     string              `json:"map_id"`
	MapType   string              `json:"map_type"`
	PlantID   string              `json:"plant_id"`
	EdgeID    string              `json:"edge_id"`
	Metrics   LatestDeviceMetrics `json:"metrics"`
	State     map[string]bool     `json:"state,omitempty"`
}

// InverterLogMessage is a localized log message.
type InverterLogMessage struct {
	Ko string `json:"ko,omitempty"`
}

// InverterLogRaw is the raw inverter status element.
type InverterLogRaw struct {
	Status string          `json:"status"`
	Code   string          `json:"code,omitempty"`
	LCD    string          `json:"lcd,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// InverterLog is one inverter log entry.
type InverterLog struct {
	PlantID    string             `json:"plantId"`
	Level      string             `json:"level"`
	InverterID string             `json:"inverterId"`
	Timestamp  string             `json:"timestamp"`
	Message    InverterLogMessage `json:"message"`
	Raw        InverterLogRaw     `json:"raw"`
}

// InverterLogList is a page of inverter logs.
type InverterLogList struct {
	Items      []InverterLog `json:"items"`
	Page       int64         `json:"page"`
	PerPage    int64         `json:"perPage"`
	TotalPages int64         `json:"totalPages"`
	TotalSizes int64         `json:"totalSizes"`
}

// InverterLatestData is the latest state of an inverter.
type InverterLatestData struct {
	Logs        []InverterLog `json:"logs,omitempty"`
	State       string        `json:"state"`
	DailyEnergy *float64      `json:"daily_energy,omitempty"`
	TotalEnergy *float64      `json:"total_energy,omitempty"`
}

// LatestInverter is the most recent state of one inverter.
type LatestInverter struct {
	Timestamp string             `json:"timestamp"`
	AssetID   string             `json:"asset_id"`
	AssetType string             `json:"asset_type"`
	MapID     string             `json:"map_id"`
	MapType   string             `json:"map_type"`
	EdgeID    string             `json:"edge_id"`
	PlantID   string             `json:"plant_id"`
	Data      InverterLatestData `json:"data"`
	Model     string             `json:"model"`
}

// FileUpload describes a stored plant file.
type FileUpload struct {
	ID       string `json:"id"`
	PlantID  string `json:"plant_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

// HealthLevelCategory counts assets in one health bucket.
type HealthLevelCategory struct {
	Count int64    `json:"count"`
	IDs   []string `json:"ids,omitempty"`
}

// HealthLevel groups assets by health.
type HealthLevel struct {
	Best    HealthLevelCategory `json:"best"`
	Caution HealthLevelCategory `json:"caution"`
	Faulty  HealthLevelCategory `json:"faulty"`
}

// CreateOrgMemberRequest adds a member account to an organization.
type CreateOrgMemberRequest struct {
	AccountType string          `json:"type"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	Username    string          `json:"username,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// OrgMember is a created organization member account.
type OrgMember struct {
	ID            string          `json:"id"`
	AccountType   string          `json:"type"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	Username      string          `json:"username,omitempty"`
	Organizations []Organization  `json:"organizations,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// PlantPermissionRequest grants an account access to a plant.
type PlantPermissionRequest struct {
	PlantID     string `json:"plantId"`
	AccountType string `json:"type"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
}

// PlantPermission is a granted plant permission.
type PlantPermission struct {
	PlantID     string `json:"plantId"`
	AccountType string `json:"type"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
}
