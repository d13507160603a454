package api

import (
	"context"
)

// CreateMember creates a member account in an organization.
func (s OrganizationsService) CreateMember(ctx context.Context, organizationID string, req CreateOrgMemberRequest) (*OrgMember, error) {
	path := "api/v3/organizations/" + EncodeSegment(organizationID) + "/members"
	var result OrgMember
	if err := s.do(ctx, postEndpoint(path, req), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GrantPlantPermission gives an account access to a plant of the organization.
func (s OrganizationsService) GrantPlantPermission(ctx context.Context, organizationID string, req PlantPermissionRequest) (*PlantPermission, error) {
	path := "api/v3/organizations/" + EncodeSegment(organizationID) + "/permissions"
	var result PlantPermission
	if err := s.do(ctx, postEndpoint(path, req), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
