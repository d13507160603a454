package api

import "context"

// HTTPExecutor provides methods for executing API calls.
// It hides path validation, authentication, the refresh-and-retry protocol,
// error classification and response decoding from the endpoint helpers.
//
// This interface enables testing endpoint helpers independently from the
// network, and allows mocking of execution in tests.
type HTTPExecutor interface {
	// do executes an endpoint and unmarshals a JSON response into result.
	do(ctx context.Context, ep endpoint, result any) error

	// doText executes an endpoint and returns the response body as text.
	doText(ctx context.Context, ep endpoint, decodeJSONString bool) (string, error)

	// PostMultipart performs an authenticated multipart/form-data POST.
	PostMultipart(ctx context.Context, path string, fields map[string]string, files []FilePart, result any) error
}

// sessionWriter replaces or clears the stored session.
type sessionWriter interface {
	storeSession(s *Session)
}

// Requester is the request surface used by the endpoint helpers.
//
// Example usage in tests:
//
//	type mockRequester struct{ ... }
//	func (m *mockRequester) do(ctx context.Context, ep endpoint, result any) error { ... }
type Requester interface {
	HTTPExecutor
	sessionWriter
}

func (c *Client) storeSession(s *Session) {
	c.session.write(s)
}
