package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/conalog/patch-cli/internal/debug"
)

const (
	loginPath          = "api/v3/account/auth-with-password"
	loginV2ManagerPath = "api/v2/manager/auth-with-password"
	loginV2ViewerPath  = "api/v2/viewer/auth-with-password"
	refreshTokenPath   = "api/v3/account/refresh-token"
)

type loginRequest struct {
	AccountType string `json:"type"`
	Password    string `json:"password"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
}

type loginV2ManagerRequest struct {
	Email    string  `json:"email"`
	Password *string `json:"password,omitempty"`
}

type loginV2ViewerRequest struct {
	Account  string  `json:"account"`
	Password *string `json:"password,omitempty"`
}

// AccountTypeFor returns the account type used for a login identifier:
// anything containing "@" is a manager email, everything else a viewer username.
func AccountTypeFor(account string) string {
	if strings.Contains(account, "@") {
		return AccountTypeManager
	}
	return AccountTypeViewer
}

// Login authenticates with the v3 password endpoint and stores the session.
func (s AuthService) Login(ctx context.Context, account, password string) (*AuthResponse, error) {
	return login(ctx, s, account, password)
}

func login(ctx context.Context, r Requester, account, password string) (*AuthResponse, error) {
	req := loginRequest{AccountType: AccountTypeFor(account), Password: password}
	if req.AccountType == AccountTypeManager {
		req.Email = account
	} else {
		req.Username = account
	}

	var result AuthResponse
	if err := r.do(ctx, loginEndpoint(loginPath, req), &result); err != nil {
		clearSessionOnLoginFailure(r, err)
		return nil, err
	}
	if result.Token == "" {
		return nil, &DecodeError{Field: "token", Err: ErrMissingField}
	}
	accountType := result.AccountType
	if accountType == "" {
		accountType = req.AccountType
	}
	r.storeSession(&Session{Token: result.Token, AccountType: accountType})
	return &result, nil
}

// LoginV2Manager authenticates a manager through the v2 endpoint.
// A nil password is omitted from the request.
func (s AuthService) LoginV2Manager(ctx context.Context, email string, password *string) (*AuthBody, error) {
	return loginV2(ctx, s, loginV2ManagerPath, loginV2ManagerRequest{Email: email, Password: password}, AccountTypeManager)
}

// LoginV2Viewer authenticates a viewer through the v2 endpoint.
func (s AuthService) LoginV2Viewer(ctx context.Context, account string, password *string) (*AuthBody, error) {
	return loginV2(ctx, s, loginV2ViewerPath, loginV2ViewerRequest{Account: account, Password: password}, AccountTypeViewer)
}

func loginV2(ctx context.Context, r Requester, path string, body any, accountType string) (*AuthBody, error) {
	var result AuthBody
	if err := r.do(ctx, loginEndpoint(path, body), &result); err != nil {
		clearSessionOnLoginFailure(r, err)
		return nil, err
	}
	if result.Token == "" {
		return nil, &DecodeError{Field: "token", Err: ErrMissingField}
	}
	r.storeSession(&Session{Token: result.Token, AccountType: accountType})
	return &result, nil
}

// clearSessionOnLoginFailure drops any stale session when a login is rejected
// with 401/403.
func clearSessionOnLoginFailure(r Requester, err error) {
	if isUnauthorizedStatus(err) {
		r.storeSession(nil)
	}
}

// RefreshToken exchanges the current token for a new one. Only the token is
// replaced; the account type is kept. Without a session it fails with
// AuthError and sends nothing. A 401/403 from the refresh endpoint is an
// AuthError; any other failure is returned as classified.
func (c *Client) RefreshToken(ctx context.Context) error {
	session, ok := c.session.read()
	if !ok {
		return &AuthError{Reason: "no active session; log in first"}
	}

	u, err := c.buildURL(refreshTokenPath, nil)
	if err != nil {
		return err
	}
	requestID := c.newRequestID()
	resp, err := c.send(ctx, http.MethodPost, u, nil, "", "application/json", requestID, &session)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		discardBody(resp.Body)
		return &AuthError{Reason: fmt.Sprintf("token refresh rejected (status %d)", resp.StatusCode)}
	}

	data, err := c.readResponse(http.MethodPost, u, resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyError(resp.StatusCode, data, resp.Header)
	}

	var result AuthBody
	if err := decodeJSON(data, &result); err != nil {
		return err
	}
	if result.Token == "" {
		return &DecodeError{Field: "token", Err: ErrMissingField}
	}
	c.session.replaceToken(result.Token)
	if debug.IsEnabled(ctx) {
		slog.Debug("token refreshed", "account_type", session.AccountType, "request_id", requestID)
	}
	return nil
}
