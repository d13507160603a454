package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/config"
)

type clientFactory struct {
	overrides config.Overrides
	userAgent string
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		overrides: config.Overrides{
			Profile: flags.Profile,
			BaseURL: flags.BaseURL,
			Timeout: flags.Timeout,
			RPS:     flags.RPS,
		},
		userAgent: fmt.Sprintf("patchctl/%s", version),
	}
}

// authenticated returns a client holding a session: the pre-issued
// PATCH_TOKEN when set, otherwise a fresh password login.
func (f *clientFactory) authenticated(ctx context.Context) (*api.Client, error) {
	cfg, err := config.ResolveClientConfig(f.overrides)
	if err != nil {
		return nil, err
	}
	client, err := f.newClient(cfg)
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.Token != "":
		client.SetSession(cfg.Token, cfg.AccountType)
	case cfg.HasCredentials():
		if err := login(ctx, client, cfg.Account, cfg.Password, cfg.LoginAPI); err != nil {
			return nil, err
		}
	default:
		return nil, config.ErrNotConfigured
	}
	return client, nil
}

func (f *clientFactory) newClient(cfg config.ClientConfig) (*api.Client, error) {
	return api.New(cfg.BaseURL, api.Options{
		Timeout:           cfg.Timeout,
		UserAgent:         f.userAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

// login authenticates through the v3 endpoint, or the v2 manager/viewer
// endpoints when the profile asks for them.
func login(ctx context.Context, client *api.Client, account, password, loginAPI string) error {
	accountType := api.AccountTypeFor(account)
	slog.Debug("logging in", "account_type", accountType, "login_api", loginAPI)

	if loginAPI != config.LoginAPIV2 {
		_, err := client.Auth().Login(ctx, account, password)
		return err
	}
	var err error
	if accountType == api.AccountTypeManager {
		_, err = client.Auth().LoginV2Manager(ctx, account, &password)
	} else {
		_, err = client.Auth().LoginV2Viewer(ctx, account, &password)
	}
	return err
}
