// Package history retrieves paginated message history and conversation
// metadata over the REST API. It never mutates application message state;
// merging fetched pages with live events is the coordinator's job.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pulseapp/chatkit-go/chatkit"
)

// DefaultPageSize is used when a fetch does not specify a limit.
const DefaultPageSize = 30

// Client provides REST access to the history service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a history client.
// baseURL should be the base URL of the API, e.g. "https://api.example.com/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetToken sets the JWT token for authenticated requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// ListConversations returns the conversations the authenticated user belongs to.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var resp []Conversation
	if err := c.get(ctx, "/conversations", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetConversation returns metadata for one conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var resp Conversation
	if err := c.get(ctx, "/conversations/"+url.PathEscape(conversationID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchPage retrieves one page of message history for a conversation.
// An empty cursor means the most recent page; the returned NextCursor
// continues toward older messages. limit <= 0 uses DefaultPageSize.
func (c *Client) FetchPage(ctx context.Context, conversationID, cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	path := fmt.Sprintf("/conversations/%s/messages?limit=%d", url.PathEscape(conversationID), limit)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}

	var resp Page
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatkit.WrapError(chatkit.ErrorConnection, "http request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatkit.WrapError(chatkit.ErrorConnection, "read response", err)
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	// Unmarshal success response
	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return chatkit.WrapError(chatkit.ErrorSerialization, "unmarshal response", err)
		}
	}

	return nil
}
