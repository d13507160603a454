package api

import (
	"context"
)

// Inverter lists inverter logs of a plant.
func (s LogsService) Inverter(ctx context.Context, plantID string, opts PageOptions) (*InverterLogList, error) {
	return listInverterLogs(ctx, s, "api/v3/plants/"+EncodeSegment(plantID)+"/logs/inverter", opts)
}

// InverterByID lists logs of one inverter.
func (s LogsService) InverterByID(ctx context.Context, plantID, inverterID string, opts PageOptions) (*InverterLogList, error) {
	path := "api/v3/plants/" + EncodeSegment(plantID) + "/logs/inverters/" + EncodeSegment(inverterID)
	return listInverterLogs(ctx, s, path, opts)
}

// InverterV2 lists inverter logs through the v2 endpoint.
func (s LogsService) InverterV2(ctx context.Context, plantID string, opts PageOptions) (*InverterLogList, error) {
	return listInverterLogs(ctx, s, "api/v2/logs/plants/"+EncodeSegment(plantID)+"/inverter", opts)
}

func listInverterLogs(ctx context.Context, r Requester, path string, opts PageOptions) (*InverterLogList, error) {
	var result InverterLogList
	if err := r.do(ctx, getEndpoint(path, opts.query()), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
