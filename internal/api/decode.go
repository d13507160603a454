package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// readBodyLimited reads at most limit bytes. One extra byte is probed so an
// oversized body fails without being buffered in full.
func readBodyLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &DecodeError{Err: fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, limit)}
	}
	return data, nil
}

// decodeJSON unmarshals a successful response into result. A nil result
// discards the body; an empty body is a DecodeError otherwise.
func decodeJSON(body []byte, result any) error {
	if result == nil {
		return nil
	}
	if len(body) == 0 {
		return &DecodeError{Err: fmt.Errorf("empty response body: %w", io.ErrUnexpectedEOF)}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &DecodeError{Field: jsonErrorField(err), Err: err}
	}
	return nil
}

// decodeText returns the body as text. When decodeJSONString is set and the
// content type is JSON, a body that is a bare JSON string is unwrapped.
func decodeText(body []byte, contentType string, decodeJSONString bool) string {
	if decodeJSONString && isJSONContentType(contentType) {
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return s
		}
	}
	return strings.ToValidUTF8(string(body), "�")
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func jsonErrorField(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}
	return ""
}
