package api

import (
	"context"
)

// Get gets the logged-in account.
func (s AccountService) Get(ctx context.Context) (*Account, error) {
	return getAccount(ctx, s)
}

func getAccount(ctx context.Context, r Requester) (*Account, error) {
	var result Account
	if err := r.do(ctx, getEndpoint("api/v3/account/", nil), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
