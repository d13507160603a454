package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := New(server.URL, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNew_RejectsInsecureBaseURL(t *testing.T) {
	for _, base := range []string{"", "http://api.example.com", "ftp://example.com", "https://example.com/?x=1"} {
		if _, err := New(base, Options{}); err == nil {
			t.Errorf("New(%q) expected error", base)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New("https://example.com/proxy", Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.BaseURL() != "https://example.com/proxy/" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.HTTP.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.HTTP.Timeout, DefaultTimeout)
	}
	if c.maxResponseBytes != DefaultMaxResponseBytes {
		t.Errorf("maxResponseBytes = %d", c.maxResponseBytes)
	}
	if c.limiter != nil {
		t.Error("limiter should be disabled by default")
	}
	if _, ok := c.Session(); ok {
		t.Error("new client must not have a session")
	}
}

func TestNew_CopiesHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Second}
	c, err := New("https://example.com", Options{HTTPClient: shared})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.HTTP == shared {
		t.Fatal("HTTP client must be copied")
	}
	if shared.CheckRedirect != nil {
		t.Error("caller's client must not be modified")
	}
	if c.HTTP.CheckRedirect == nil {
		t.Error("redirect policy must be installed")
	}
}

func TestExecute_AuthHeaders(t *testing.T) {
	var gotAuth, gotAccountType, gotRequestID, gotAccept, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccountType = r.Header.Get("Account-Type")
		gotRequestID = r.Header.Get("X-Request-Id")
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		writeJSON(w, 200, `{"name":"Op","email":"a@b.c"}`)
	}, Options{UserAgent: "patchctl/test"})
	c.SetSession("tok-1", AccountTypeManager)

	if _, err := c.Account().Get(context.Background()); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccountType != AccountTypeManager {
		t.Errorf("Account-Type = %q", gotAccountType)
	}
	if gotRequestID == "" {
		t.Error("X-Request-Id must be set")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotUA != "patchctl/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestExecute_NoSessionSendsNoAuth(t *testing.T) {
	var hadAuth bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		writeJSON(w, 200, `{}`)
	}, Options{})

	if _, err := c.Account().Get(context.Background()); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if hadAuth {
		t.Error("Authorization must not be sent without a session")
	}
}

func TestExecute_BearerPrefixNotDoubled(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, 200, `{}`)
	}, Options{})
	c.SetSession("bearer abc", AccountTypeViewer)

	if _, err := c.Account().Get(context.Background()); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if gotAuth != "bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

// refreshServer answers the refresh endpoint with refreshStatus/refreshBody and
// every other path with the statuses queued in dataStatuses, then 200.
type refreshServer struct {
	refreshStatus int
	refreshBody   string
	dataStatuses  []int

	refreshCalls atomic.Int32
	dataCalls    atomic.Int32
	authSeen     []string
}

func (s *refreshServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+refreshTokenPath {
			s.refreshCalls.Add(1)
			if r.Method != http.MethodPost {
				t.Errorf("refresh method = %s", r.Method)
			}
			writeJSON(w, s.refreshStatus, s.refreshBody)
			return
		}
		n := int(s.dataCalls.Add(1))
		s.authSeen = append(s.authSeen, r.Header.Get("Authorization"))
		status := 200
		if n <= len(s.dataStatuses) {
			status = s.dataStatuses[n-1]
		}
		if status == 200 {
			writeJSON(w, 200, `{"name":"Op","type":"viewer"}`)
			return
		}
		writeJSON(w, status, `{"title":"Unauthorized","status":401}`)
	}
}

func TestExecute_RefreshesOnceOn401(t *testing.T) {
	srv := &refreshServer{
		refreshStatus: 200,
		refreshBody:   `{"token":"tok-new","name":"Op"}`,
		dataStatuses:  []int{401},
	}
	c := newTestClient(t, srv.handler(t), Options{})
	c.SetSession("tok-old", AccountTypeViewer)

	acc, err := c.Account().Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if acc.Name != "Op" {
		t.Errorf("Name = %q", acc.Name)
	}
	if srv.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", srv.refreshCalls.Load())
	}
	if srv.dataCalls.Load() != 2 {
		t.Errorf("data calls = %d, want 2", srv.dataCalls.Load())
	}
	if srv.authSeen[1] != "Bearer tok-new" {
		t.Errorf("retry Authorization = %q", srv.authSeen[1])
	}
	session, _ := c.Session()
	if session.Token != "tok-new" || session.AccountType != AccountTypeViewer {
		t.Errorf("session after refresh = %+v", session)
	}
}

func TestExecute_SecondUnauthorizedIsReturned(t *testing.T) {
	srv := &refreshServer{
		refreshStatus: 200,
		refreshBody:   `{"token":"tok-new"}`,
		dataStatuses:  []int{401, 401, 401},
	}
	c := newTestClient(t, srv.handler(t), Options{})
	c.SetSession("tok-old", AccountTypeManager)

	_, err := c.Account().Get(context.Background())
	if StatusCode(err) != 401 {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if srv.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", srv.refreshCalls.Load())
	}
	if srv.dataCalls.Load() != 2 {
		t.Errorf("data calls = %d, want 2", srv.dataCalls.Load())
	}
}

func TestExecute_NoRefreshWithoutSession(t *testing.T) {
	srv := &refreshServer{refreshStatus: 200, refreshBody: `{"token":"x"}`, dataStatuses: []int{401}}
	c := newTestClient(t, srv.handler(t), Options{})

	_, err := c.Account().Get(context.Background())
	if StatusCode(err) != 401 {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if srv.refreshCalls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", srv.refreshCalls.Load())
	}
}

func TestExecute_RefreshFailureKeepsProblem(t *testing.T) {
	srv := &refreshServer{
		refreshStatus: 500,
		refreshBody:   `{"title":"Refresh Broken","status":500,"detail":"token store down"}`,
		dataStatuses:  []int{401},
	}
	c := newTestClient(t, srv.handler(t), Options{})
	c.SetSession("tok-old", AccountTypeManager)

	_, err := c.Account().Get(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.StatusCode != 500 || apiErr.Title != "Refresh Broken" || apiErr.Detail != "token store down" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if srv.dataCalls.Load() != 1 {
		t.Errorf("data calls = %d, want 1", srv.dataCalls.Load())
	}
	session, _ := c.Session()
	if session.Token != "tok-old" {
		t.Errorf("token = %q, want unchanged", session.Token)
	}
}

func TestExecute_RefreshRejectedIsAuthError(t *testing.T) {
	for _, status := range []int{401, 403} {
		srv := &refreshServer{refreshStatus: status, refreshBody: `{"title":"nope"}`, dataStatuses: []int{401}}
		c := newTestClient(t, srv.handler(t), Options{})
		c.SetSession("tok-old", AccountTypeManager)

		_, err := c.Account().Get(context.Background())
		if !IsAuthError(err) {
			t.Errorf("status %d: expected AuthError, got %T %v", status, err, err)
		}
	}
}

func TestRefreshToken_NoSession(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 200, `{"token":"x"}`)
	}, Options{})

	err := c.RefreshToken(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("no request should be sent, got %d", calls.Load())
	}
}

func TestRefreshToken_EmptyToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"token":""}`)
	}, Options{})
	c.SetSession("tok-old", AccountTypeManager)

	err := c.RefreshToken(context.Background())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Field != "token" {
		t.Fatalf("expected DecodeError for token, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		account    string
		wantType   string
		wantField  string
		respType   string
		storedType string
	}{
		{"manager email", "ops@example.com", AccountTypeManager, "email", "", AccountTypeManager},
		{"viewer username", "viewer01", AccountTypeViewer, "username", "", AccountTypeViewer},
		{"response type wins", "ops@example.com", AccountTypeManager, "email", "viewer", "viewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			var hadAuth bool
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/"+loginPath {
					t.Errorf("path = %s", r.URL.Path)
				}
				_, hadAuth = r.Header["Authorization"]
				_ = json.NewDecoder(r.Body).Decode(&got)
				resp := map[string]string{"token": "tok-1", "name": "Op"}
				if tt.respType != "" {
					resp["type"] = tt.respType
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			}, Options{})
			c.SetSession("stale", AccountTypeManager)

			resp, err := c.Auth().Login(context.Background(), tt.account, "pw")
			if err != nil {
				t.Fatalf("Login() error: %v", err)
			}
			if hadAuth {
				t.Error("login must not send Authorization")
			}
			if got["type"] != tt.wantType || got[tt.wantField] != tt.account || got["password"] != "pw" {
				t.Errorf("request body = %v", got)
			}
			if resp.Token != "tok-1" {
				t.Errorf("Token = %q", resp.Token)
			}
			session, ok := c.Session()
			if !ok || session.Token != "tok-1" || session.AccountType != tt.storedType {
				t.Errorf("session = %+v", session)
			}
		})
	}
}

func TestLogin_FailureClearsSession(t *testing.T) {
	for _, status := range []int{401, 403} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, `{"title":"Invalid credentials"}`)
		}, Options{})
		c.SetSession("stale", AccountTypeManager)

		_, err := c.Auth().Login(context.Background(), "ops@example.com", "bad")
		if StatusCode(err) != status {
			t.Fatalf("status %d: got %v", status, err)
		}
		if _, ok := c.Session(); ok {
			t.Errorf("status %d: stale session must be cleared", status)
		}
	}
}

func TestLogin_ServerErrorKeepsSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, `{"title":"Down"}`)
	}, Options{})
	c.SetSession("existing", AccountTypeManager)

	if _, err := c.Auth().Login(context.Background(), "ops@example.com", "pw"); err == nil {
		t.Fatal("expected error")
	}
	if s, ok := c.Session(); !ok || s.Token != "existing" {
		t.Errorf("session = %+v, %v", s, ok)
	}
}

func TestLogin_NoRefreshOn401(t *testing.T) {
	var refreshCalls, loginCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+refreshTokenPath {
			refreshCalls.Add(1)
		} else {
			loginCalls.Add(1)
		}
		writeJSON(w, 401, `{}`)
	}, Options{})
	c.SetSession("stale", AccountTypeManager)

	_, _ = c.Auth().Login(context.Background(), "ops@example.com", "pw")
	if refreshCalls.Load() != 0 || loginCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, login calls = %d", refreshCalls.Load(), loginCalls.Load())
	}
}

func TestLoginV2(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		writeJSON(w, 200, `{"token":"v2-token","name":"Op"}`)
	}, Options{})

	pw := "secret"
	if _, err := c.Auth().LoginV2Manager(context.Background(), "ops@example.com", &pw); err != nil {
		t.Fatalf("LoginV2Manager() error: %v", err)
	}
	if s, _ := c.Session(); s.AccountType != AccountTypeManager || s.Token != "v2-token" {
		t.Errorf("session = %+v", s)
	}
	if _, err := c.Auth().LoginV2Viewer(context.Background(), "viewer01", nil); err != nil {
		t.Fatalf("LoginV2Viewer() error: %v", err)
	}
	if s, _ := c.Session(); s.AccountType != AccountTypeViewer {
		t.Errorf("session = %+v", s)
	}

	if paths[0] != "/"+loginV2ManagerPath || paths[1] != "/"+loginV2ViewerPath {
		t.Errorf("paths = %v", paths)
	}
	if bodies[0]["email"] != "ops@example.com" || bodies[0]["password"] != "secret" {
		t.Errorf("manager body = %v", bodies[0])
	}
	if _, ok := bodies[1]["password"]; ok {
		t.Errorf("nil password must be omitted: %v", bodies[1])
	}
	if bodies[1]["account"] != "viewer01" {
		t.Errorf("viewer body = %v", bodies[1])
	}
}

func TestLogout(t *testing.T) {
	c, err := New("https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	c.SetSession("tok", AccountTypeManager)
	c.Logout()
	if _, ok := c.Session(); ok {
		t.Error("Logout must clear the session")
	}
}

func TestExecute_BoundedBody(t *testing.T) {
	const limit = 64
	body := `{"id":"` + strings.Repeat("x", limit-9) + `"}`
	if len(body) != limit {
		t.Fatalf("fixture length = %d", len(body))
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("over") == "1" {
			writeJSON(w, 200, body+" ")
			return
		}
		writeJSON(w, 200, body)
	}, Options{MaxResponseBytes: limit})

	if _, err := c.Do(context.Background(), "GET", "x", nil, nil); err != nil {
		t.Fatalf("body at the limit should succeed: %v", err)
	}

	_, err := c.Do(context.Background(), "GET", "x", Query{}.Add("over", "1"), nil)
	if !IsDecodeError(err) || !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected DecodeError wrapping ErrResponseTooLarge, got %v", err)
	}
}

func TestExecute_OversizedErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, strings.Repeat("e", 100))
	}, Options{MaxResponseBytes: 10})

	_, err := c.Do(context.Background(), "GET", "x", nil, nil)
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestExecute_EmptySuccessBodyIsDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	}, Options{})
	c.SetSession("tok", AccountTypeManager)

	plant, err := c.Plants().Get(context.Background(), "p1")
	if !IsDecodeError(err) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Plants().Get() = %+v, %v; want DecodeError", plant, err)
	}
	if _, err := c.Account().Get(context.Background()); !IsDecodeError(err) {
		t.Fatalf("Account().Get() error = %v, want DecodeError", err)
	}

	raw, err := c.Do(context.Background(), "DELETE", "api/v3/plants/p1", nil, nil)
	if err != nil {
		t.Fatalf("Do() should pass an empty body through: %v", err)
	}
	if raw.StatusCode != http.StatusOK || len(raw.Body) != 0 {
		t.Errorf("raw = %+v", raw)
	}
}

func TestExecute_ConcurrentUnauthorizedEachRefresh(t *testing.T) {
	const callers = 16
	var refreshCalls, staleCalls atomic.Int32
	allStale := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+refreshTokenPath {
			n := refreshCalls.Add(1)
			writeJSON(w, 200, fmt.Sprintf(`{"token":"tok-%d"}`, n))
			return
		}
		if r.Header.Get("Authorization") == "Bearer tok-old" {
			// Hold every 401 until all callers have sent the old token.
			if staleCalls.Add(1) == callers {
				close(allStale)
			}
			select {
			case <-allStale:
			case <-time.After(5 * time.Second):
			}
			writeJSON(w, 401, `{"title":"Unauthorized","status":401}`)
			return
		}
		writeJSON(w, 200, `{"name":"Op","type":"manager"}`)
	}, Options{})
	c.SetSession("tok-old", AccountTypeManager)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Account().Get(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := staleCalls.Load(); got != callers {
		t.Errorf("stale sends = %d, want %d", got, callers)
	}
	if got := refreshCalls.Load(); got != callers {
		t.Errorf("refresh calls = %d, want one per caller (%d)", got, callers)
	}
	session, ok := c.Session()
	if !ok || session.Token == "tok-old" || session.AccountType != AccountTypeManager {
		t.Errorf("session = %+v, %v", session, ok)
	}
}

func TestExecute_ErrorBodyNotLeaked(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "srv-req-9")
		w.WriteHeader(502)
		_, _ = w.Write([]byte("upstream token=abcdef"))
	}, Options{})

	_, err := c.Do(context.Background(), "GET", "x", nil, nil)
	var opaque *OpaqueAPIError
	if !errors.As(err, &opaque) {
		t.Fatalf("expected OpaqueAPIError, got %T %v", err, err)
	}
	if opaque.StatusCode != 502 || opaque.RequestID != "srv-req-9" {
		t.Errorf("opaque = %+v", opaque)
	}
	if strings.Contains(err.Error(), "abcdef") {
		t.Errorf("error leaks body: %v", err)
	}
}

func TestExecute_RedirectNotFollowed(t *testing.T) {
	var followed atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/target" {
			followed.Add(1)
			writeJSON(w, 200, `{}`)
			return
		}
		http.Redirect(w, r, "/target", http.StatusFound)
	}, Options{})
	c.SetSession("tok", AccountTypeManager)

	_, err := c.Do(context.Background(), "GET", "start", nil, nil)
	if StatusCode(err) != http.StatusFound {
		t.Fatalf("expected 302 error, got %v", err)
	}
	if followed.Load() != 0 {
		t.Error("redirect must not be followed")
	}
}

func TestExecute_InvalidPathSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, Options{})

	_, err := c.Do(context.Background(), "GET", "api/../admin", nil, nil)
	if !IsInvalidPathError(err) {
		t.Fatalf("expected InvalidPathError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("no request should be sent")
	}
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Options{Timeout: 50 * time.Millisecond})
	t.Cleanup(func() { close(release) })
	c.SetSession("tok", AccountTypeManager)

	_, err := c.Account().Get(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if !transportErr.Timeout() {
		t.Errorf("Timeout() = false for %v", err)
	}
	if s, _ := c.Session(); s.Token != "tok" {
		t.Errorf("session changed: %+v", s)
	}
}

func TestExecute_RateLimiterHonoursContext(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 200, `{}`)
	}, Options{RequestsPerSecond: 0.001, Burst: 1})

	if _, err := c.Do(context.Background(), "GET", "x", nil, nil); err != nil {
		t.Fatalf("first call error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, "GET", "x", nil, nil)
	if !IsTransportError(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected TransportError wrapping context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDo_SendsRawBody(t *testing.T) {
	var gotMethod, gotCT, gotBody, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Custom", "yes")
		writeJSON(w, 201, `{"ok":true}`)
	}, Options{})

	resp, err := c.Do(context.Background(), "post", "api/v3/things", Query{}.Add("a", "1"), []byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if gotMethod != "POST" || gotCT != "application/json" || gotBody != `{"x":1}` || gotQuery != "a=1" {
		t.Errorf("request = %s %s %s %s", gotMethod, gotCT, gotBody, gotQuery)
	}
	if resp.StatusCode != 201 || string(resp.Body) != `{"ok":true}` || resp.Header.Get("X-Custom") != "yes" {
		t.Errorf("response = %+v", resp)
	}
}

func TestDoText(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		unwrap      bool
		want        string
	}{
		{"json string unwrapped", "application/json", `"<svg/>"`, true, "<svg/>"},
		{"problem json string unwrapped", "application/problem+json; charset=utf-8", `"a\nb"`, true, "a\nb"},
		{"raw text kept", "text/plain", `"<svg/>"`, true, `"<svg/>"`},
		{"unwrap disabled", "application/json", `"<svg/>"`, false, `"<svg/>"`},
		{"json object kept", "application/json", `{"a":1}`, true, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var accept string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				accept = r.Header.Get("Accept")
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}, Options{})

			got, err := c.doText(context.Background(), getEndpoint("x", nil), tt.unwrap)
			if err != nil {
				t.Fatalf("doText() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("doText() = %q, want %q", got, tt.want)
			}
			if accept != "" {
				t.Errorf("Accept = %q, want none", accept)
			}
		})
	}
}

func TestPostMultipart(t *testing.T) {
	var fields map[string][]string
	var fileName, fileCT, fileBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		fields = r.MultipartForm.Value
		fh := r.MultipartForm.File["file"][0]
		fileName = fh.Filename
		fileCT = fh.Header.Get("Content-Type")
		f, _ := fh.Open()
		b, _ := io.ReadAll(f)
		fileBody = string(b)
		writeJSON(w, 200, `{"id":"f1"}`)
	}, Options{})
	c.SetSession("tok", AccountTypeManager)

	var result map[string]string
	err := c.PostMultipart(context.Background(), "upload", map[string]string{"name": "layout"},
		[]FilePart{{FieldName: "file", Filename: "map.json", ContentType: "application/json", Content: []byte(`{"k":1}`)}}, &result)
	if err != nil {
		t.Fatalf("PostMultipart() error: %v", err)
	}
	if fields["name"][0] != "layout" || fileName != "map.json" || fileCT != "application/json" || fileBody != `{"k":1}` {
		t.Errorf("multipart = %v %s %s %s", fields, fileName, fileCT, fileBody)
	}
	if result["id"] != "f1" {
		t.Errorf("result = %v", result)
	}
}

func TestEncodeMultipart_RejectsCRLF(t *testing.T) {
	cases := []struct {
		fields map[string]string
		files  []FilePart
	}{
		{fields: map[string]string{"na\r\nme": "x"}},
		{files: []FilePart{{FieldName: "file", Filename: "a\nb.txt"}}},
		{files: []FilePart{{FieldName: "fi\rle", Filename: "a.txt"}}},
		{files: []FilePart{{FieldName: "file", Filename: "a.txt", ContentType: "text/plain\r\nX-Evil: 1"}}},
	}
	for i, tc := range cases {
		if _, _, err := encodeMultipart(tc.fields, tc.files, 1<<20); err == nil {
			t.Errorf("case %d: expected CRLF rejection", i)
		}
	}
}

func TestEncodeMultipart_SizeLimit(t *testing.T) {
	files := []FilePart{{FieldName: "file", Filename: "big.bin", Content: make([]byte, 2048)}}
	if _, _, err := encodeMultipart(nil, files, 1024); err == nil || !strings.Contains(err.Error(), "exceeds 1024 bytes") {
		t.Fatalf("expected size error, got %v", err)
	}
	if _, _, err := encodeMultipart(nil, files, 1<<20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEncodeMultipart_EscapesFilename(t *testing.T) {
	_, payload, err := encodeMultipart(nil, []FilePart{{FieldName: "file", Filename: `a"b.txt`, Content: []byte("x")}}, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(payload), `filename="a\"b.txt"`) {
		t.Errorf("payload = %s", payload)
	}
	if !strings.Contains(string(payload), "Content-Type: application/octet-stream") {
		t.Errorf("default content type missing: %s", payload)
	}
}
