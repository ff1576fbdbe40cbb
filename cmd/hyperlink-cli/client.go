package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient is a thin wrapper over the hyperlinkd HTTP API. The base URL is
// resolved lazily so the persistent --server flag is honored.
type apiClient struct {
	baseURL func() string
}

var httpClient = &http.Client{Timeout: 60 * time.Minute}

func (c *apiClient) url(path string) string {
	return strings.TrimRight(c.baseURL(), "/") + path
}

// postJSON sends a JSON body and decodes a JSON response into out (when out
// is non-nil). API error payloads become Go errors.
func (c *apiClient) postJSON(path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, c.url(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *apiClient) getJSON(path string, out interface{}) error {
	resp, err := httpClient.Get(c.url(path))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// getRaw fetches a path and returns the body stream plus its declared length
// (-1 when unknown). The caller closes the body.
func (c *apiClient) getRaw(path string) (io.ReadCloser, int64, error) {
	resp, err := httpClient.Get(c.url(path))
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, apiError(resp)
	}
	return resp.Body, resp.ContentLength, nil
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server: %s (HTTP %d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
}
