package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/config"
)

// HandleError renders err with suggestions for text output.
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder
	var (
		apiErr       *api.APIError
		opaqueErr    *api.OpaqueAPIError
		authErr      *api.AuthError
		transportErr *api.TransportError
		decodeErr    *api.DecodeError
		pathErr      *api.InvalidPathError
		structured   *api.StructuredError
	)

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("No credentials configured.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: patchctl auth login\n")
		msg.WriteString("  - Or set PATCH_BASE_URL, PATCH_ACCOUNT and PATCH_PASSWORD\n")

	case errors.As(err, &authErr):
		fmt.Fprintf(&msg, "Authentication failed: %s\n\n", authErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: patchctl auth login\n")
		msg.WriteString("  - Check the account and password of the active profile\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n", apiErr.StatusCode, apiErr.Title)
		if apiErr.Detail != "" {
			fmt.Fprintf(&msg, "  %s\n", apiErr.Detail)
		}
		if apiErr.Problem != nil {
			for _, e := range apiErr.Problem.Errors {
				if e.Location != "" {
					fmt.Fprintf(&msg, "  - %s: %s\n", e.Location, e.Message)
				} else {
					fmt.Fprintf(&msg, "  - %s\n", e.Message)
				}
			}
		}
		msg.WriteString("\n")
		msg.WriteString(suggestionsForStatusCode(apiErr.StatusCode))
		if apiErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", apiErr.RequestID)
		}

	case errors.As(err, &opaqueErr):
		fmt.Fprintf(&msg, "API error (HTTP %d)\n\n", opaqueErr.StatusCode)
		msg.WriteString(suggestionsForStatusCode(opaqueErr.StatusCode))
		if opaqueErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", opaqueErr.RequestID)
		}

	case errors.As(err, &transportErr):
		if transportErr.Timeout() {
			msg.WriteString("Request timed out.\n\n")
			msg.WriteString("Suggestions:\n")
			msg.WriteString("  - Retry, or raise --timeout\n")
		} else {
			fmt.Fprintf(&msg, "Could not reach the API: %s\n\n", transportErr.Err)
			msg.WriteString("Suggestions:\n")
			msg.WriteString("  - Check the base URL: patchctl auth status\n")
			msg.WriteString("  - Check your network connection\n")
		}

	case errors.As(err, &pathErr):
		fmt.Fprintf(&msg, "Error: %s\n\n", pathErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - IDs must not be '.', '..' or contain encoded slashes\n")

	case errors.As(err, &decodeErr):
		fmt.Fprintf(&msg, "Unexpected response: %s\n\n", decodeErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Use --debug to see the request\n")
		msg.WriteString("  - Try the raw response: patchctl api GET <path>\n")

	case errors.As(err, &structured):
		fmt.Fprintf(&msg, "Error: %s\n", structured.Message)
		if structured.Suggestion != "" {
			fmt.Fprintf(&msg, "\nSuggestion: %s\n", structured.Suggestion)
		}

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var s strings.Builder
	s.WriteString("Suggestions:\n")

	switch {
	case code == 400 || code == 422:
		s.WriteString("  - Check your request parameters\n")
		s.WriteString("  - Use --debug to see the full request\n")
	case code == 401:
		s.WriteString("  - Your session could not be renewed\n")
		s.WriteString("  - Run: patchctl auth login\n")
	case code == 403:
		s.WriteString("  - Your account has no access to this resource\n")
		s.WriteString("  - Ask an organization manager to grant plant permission\n")
	case code == 404:
		s.WriteString("  - Check the plant or resource ID\n")
		s.WriteString("  - Use --resolve-names to look plants up by name\n")
	case code == 429:
		s.WriteString("  - Too many requests; lower --rps and retry\n")
	case code >= 500:
		s.WriteString("  - Server error; wait and retry\n")
	case code >= 300 && code < 400:
		s.WriteString("  - The server answered with a redirect; check the base URL\n")
	default:
		s.WriteString("  - Use --debug for more details\n")
	}
	return s.String()
}
