package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// requestTimeout bounds blocking requests. Local inference on large models is
// slow, so this is generous.
const requestTimeout = 300 * time.Second

type Client struct {
	host   string
	client *http.Client
	// streamClient carries no overall timeout: a stream lives as long as the
	// model keeps producing tokens. Cancellation comes from the context.
	streamClient *http.Client
}

func NewClient(host string) *Client {
	return &Client{
		host:         strings.TrimRight(host, "/"),
		client:       &http.Client{Timeout: requestTimeout},
		streamClient: &http.Client{},
	}
}

func (c *Client) Host() string {
	return c.host
}

// CheckRunning pings the server root. Ollama answers it with a short banner,
// so any successful response means the server is up.
func (c *Client) CheckRunning(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return newClientError(ErrTypeConnection, fmt.Sprintf("server is not reachable at %s", c.host), err)
	}
	resp.Body.Close()
	return nil
}

// Generate issues a blocking generate request and decodes the single response
// object.
func (c *Client) Generate(ctx context.Context, payload *GeneratePayload) (*GenerateResponse, error) {
	payload.Stream = false
	resp, err := c.post(ctx, "/api/generate", payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, newClientError(ErrTypeParse, "failed to decode generate response", err)
	}
	return &apiResp, nil
}

// GenerateStream issues a streaming generate request and feeds each chunk to
// fn as it arrives. It returns the accumulated response text and stream
// stats.
func (c *Client) GenerateStream(ctx context.Context, payload *GeneratePayload, fn StreamFunc) (string, *StreamStats, error) {
	payload.Stream = true
	resp, err := c.post(ctx, "/api/generate", payload, true)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	return NewStreamReader(resp.Body).Process(ctx, fn)
}

// Chat issues a blocking chat request with the full message history.
func (c *Client) Chat(ctx context.Context, payload *ChatPayload) (*ChatResponse, error) {
	payload.Stream = false
	resp, err := c.post(ctx, "/api/chat", payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, newClientError(ErrTypeParse, "failed to decode chat response", err)
	}
	return &apiResp, nil
}

func (c *Client) ChatStream(ctx context.Context, payload *ChatPayload, fn StreamFunc) (string, *StreamStats, error) {
	payload.Stream = true
	resp, err := c.post(ctx, "/api/chat", payload, true)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	return NewStreamReader(resp.Body).Process(ctx, fn)
}

// ListModels fetches the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tags request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(c.host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeErrorResponse(resp)
	}
	var tags TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, newClientError(ErrTypeParse, "failed to decode tags response", err)
	}
	return tags.Models, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, stream bool) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.client
	if stream {
		hc = c.streamClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, classifyTransportError(c.host, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.decodeErrorResponse(resp)
	}
	return resp, nil
}

// decodeErrorResponse turns a non-200 reply into a typed error, quoting the
// server's error body when it parses.
func (c *Client) decodeErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var se ServerError
	if err := json.Unmarshal(body, &se); err == nil && se.Err != "" {
		if resp.StatusCode == http.StatusNotFound && strings.Contains(se.Err, "not found") {
			return newClientError(ErrTypeModelNotFound, se.Err, nil)
		}
		return newClientError(ErrTypeServer, fmt.Sprintf("server error (%d): %s", resp.StatusCode, se.Err), nil)
	}
	return newClientError(ErrTypeServer, fmt.Sprintf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
}

func classifyTransportError(host string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newClientError(ErrTypeTimeout, fmt.Sprintf("request to %s timed out", host), err)
	}
	return newClientError(ErrTypeConnection, fmt.Sprintf("cannot reach server at %s (is ollama running?)", host), err)
}
