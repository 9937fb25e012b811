package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"

	"github.com/ag-ui/go-engine/pkg/core"
)

// MaxRequestSize bounds the run request body accepted by the server side of
// every transport.
const MaxRequestSize = 16 << 20

// ParseEndpoint parses raw as an absolute URL with one of the given schemes.
// Failures are reported as *core.ConfigError naming field.
func ParseEndpoint(field, raw string, schemes ...string) (*url.URL, error) {
	if raw == "" {
		return nil, &core.ConfigError{
			Field: field,
			Value: raw,
			Err:   errors.New("endpoint cannot be empty"),
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &core.ConfigError{
			Field: field,
			Value: raw,
			Err:   fmt.Errorf("invalid endpoint: %w", err),
		}
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return nil, &core.ConfigError{
			Field: field,
			Value: raw,
			Err:   fmt.Errorf("endpoint must be an absolute %v URL", schemes),
		}
	}
	return u, nil
}

// DecodeRequest reads one JSON run request and validates it.
func DecodeRequest(r io.Reader) (*core.RunRequest, error) {
	var req core.RunRequest
	dec := json.NewDecoder(io.LimitReader(r, MaxRequestSize))
	if err := dec.Decode(&req); err != nil {
		return nil, &core.EncodingError{Format: "json", EventType: "RunRequest", Err: err}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
