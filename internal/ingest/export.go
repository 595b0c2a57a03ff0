package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var ErrSinkNotConfigured = errors.New("sink not configured")

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Export posts v as JSON to url with an X-Signature header. It returns the
// number of bytes sent.
func Export(ctx context.Context, c HTTPClient, url, secret string, v any) (int, error) {
	if url == "" || secret == "" {
		return 0, ErrSinkNotConfigured
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", Sign(secret, b))
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return len(b), nil
}
