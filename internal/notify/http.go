package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// postJSON sends body to endpoint and classifies any failure.
func postJSON(ctx context.Context, client *http.Client, name, endpoint string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return sendErr(FailureTarget, "%s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req) // #nosec G107 -- endpoint is an operator-configured webhook URL
	if err != nil {
		return &SendError{Kind: FailureTransient, Err: fmt.Errorf("%s: %w", name, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return sendErr(kindForStatus(resp.StatusCode), "%s returned %d: %s", name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// checkURL reports a problem with raw as an endpoint, or "" if it is usable.
func checkURL(key, raw string, schemes ...string) string {
	if raw == "" {
		return key + " is required"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("%s is not a valid URL: %v", key, err)
	}
	if u.Host == "" {
		return key + " must be an absolute URL"
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return ""
		}
	}
	return fmt.Sprintf("%s must use scheme %v, got %q", key, schemes, u.Scheme)
}
