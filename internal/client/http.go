package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/landscapehq/landscape/internal/model"
)

// HTTPClient implements CatalogClient using the landscape HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Card CRUD ---

func (c *HTTPClient) CreateCard(ctx context.Context, req *CreateCardRequest) (*model.Card, error) {
	var card model.Card
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cards", req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) GetCard(ctx context.Context, id string) (*model.Card, error) {
	var card model.Card
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cards/"+url.PathEscape(id), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) ListCards(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if len(req.Type) > 0 {
		q.Set("type", strings.Join(req.Type, ","))
	}
	if len(req.Lifecycle) > 0 {
		q.Set("lifecycle", strings.Join(req.Lifecycle, ","))
	}
	if len(req.Tags) > 0 {
		q.Set("tags", strings.Join(req.Tags, ","))
	}
	if req.Owner != "" {
		q.Set("owner", req.Owner)
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", req.Offset))
	}

	path := "/v1/cards"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListCardsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateCard(ctx context.Context, id string, req *UpdateCardRequest) (*model.Card, error) {
	var card model.Card
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/cards/"+url.PathEscape(id), req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) ArchiveCard(ctx context.Context, id string, archivedBy string) (*model.Card, error) {
	body := map[string]string{}
	if archivedBy != "" {
		body["archived_by"] = archivedBy
	}
	var card model.Card
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cards/"+url.PathEscape(id)+"/archive", body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) DeleteCard(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/cards/"+url.PathEscape(id), nil, nil)
}

// --- Relations ---

func (c *HTTPClient) CreateRelation(ctx context.Context, req *CreateRelationRequest) (*model.Relation, error) {
	var rel model.Relation
	if err := c.doJSON(ctx, http.MethodPost, "/v1/relations", req, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *HTTPClient) DeleteRelation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/relations/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) GetCardRelations(ctx context.Context, cardID string) ([]*model.Relation, error) {
	var resp struct {
		Relations []*model.Relation `json:"relations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cards/"+url.PathEscape(cardID)+"/relations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Relations, nil
}

// --- Tags ---

func (c *HTTPClient) AssignTag(ctx context.Context, cardID, tag string) (*AssignTagResponse, error) {
	body := map[string]string{"tag": tag}
	var resp AssignTagResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cards/"+url.PathEscape(cardID)+"/tags", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) RemoveTag(ctx context.Context, cardID, tag string) error {
	path := "/v1/cards/" + url.PathEscape(cardID) + "/tags/" + url.PathEscape(tag)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) GetTags(ctx context.Context, cardID string) ([]string, error) {
	var resp struct {
		Tags []string `json:"tags"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cards/"+url.PathEscape(cardID)+"/tags", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// --- Comments ---

func (c *HTTPClient) AddComment(ctx context.Context, cardID, author, body string) (*model.Comment, error) {
	req := map[string]string{"author": author, "body": body}
	var comment model.Comment
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cards/"+url.PathEscape(cardID)+"/comments", req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPClient) GetComments(ctx context.Context, cardID string) ([]*model.Comment, error) {
	var resp struct {
		Comments []*model.Comment `json:"comments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cards/"+url.PathEscape(cardID)+"/comments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// --- Events ---

func (c *HTTPClient) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	q := url.Values{}
	if req.EntityType != "" {
		q.Set("entity_type", req.EntityType)
	}
	if req.EntityID != "" {
		q.Set("entity_id", req.EntityID)
	}
	if req.Type != "" {
		q.Set("type", req.Type)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", req.Offset))
	}

	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamEvents tails the live SSE stream, invoking fn for every received
// event until ctx is cancelled or the stream ends. A stream ended by the
// server (for example after an eviction) returns io.EOF wrapped in the error.
func (c *HTTPClient) StreamEvents(ctx context.Context, types []string, fn func(*model.Event)) error {
	path := "/v1/events/stream"
	if len(types) > 0 {
		path += "?types=" + url.QueryEscape(strings.Join(types, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apiErrorFromBody(resp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			// Blank separators and keepalive comments.
			continue
		}
		var evt model.Event
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return fmt.Errorf("decoding stream event: %w", err)
		}
		fn(&evt)
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("event stream closed: %w", io.EOF)
}

// --- Scoring ---

func (c *HTTPClient) RecomputeCard(ctx context.Context, id string) (*RecomputeCardResponse, error) {
	var resp RecomputeCardResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cards/"+url.PathEscape(id)+"/recompute", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) RecomputeAll(ctx context.Context) (*RecomputeAllResponse, error) {
	var resp RecomputeAllResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/recompute", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiErrorFromBody(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded (for
// DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiErrorFromBody(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
