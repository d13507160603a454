package api

// Service accessors group Client methods by resource.
// Each service embeds *Client so it satisfies Requester.

type AuthService struct{ *Client }

type AccountService struct{ *Client }

type PlantsService struct{ *Client }

type MetricsService struct{ *Client }

type LogsService struct{ *Client }

type RegistryService struct{ *Client }

type FilesService struct{ *Client }

type IndicatorsService struct{ *Client }

type OrganizationsService struct{ *Client }

func (c *Client) Auth() AuthService {
	return AuthService{c}
}

func (c *Client) Account() AccountService {
	return AccountService{c}
}

func (c *Client) Plants() PlantsService {
	return PlantsService{c}
}

func (c *Client) Metrics() MetricsService {
	return MetricsService{c}
}

func (c *Client) Logs() LogsService {
	return LogsService{c}
}

func (c *Client) Registry() RegistryService {
	return RegistryService{c}
}

func (c *Client) Files() FilesService {
	return FilesService{c}
}

func (c *Client) Indicators() IndicatorsService {
	return IndicatorsService{c}
}

func (c *Client) Organizations() OrganizationsService {
	return OrganizationsService{c}
}
