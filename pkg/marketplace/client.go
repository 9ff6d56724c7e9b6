package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"prochat/internal/errors"
	"prochat/internal/tracing"
	"prochat/pkg/circuitbreaker"
	"prochat/pkg/marketplace/types"

	"go.opentelemetry.io/otel/attribute"
)

// Breaker tuning for the backend: open after 5 straight transport failures,
// probe again after 30 seconds.
const (
	breakerMaxFailures = 5
	breakerCooldown    = 30 * time.Second
)

// Client is the marketplace backend API surface consumed by the chat engine.
type Client interface {
	GetUserChats(ctx context.Context, userID, role string) ([]types.Chat, error)
	CheckChat(ctx context.Context, req types.CreateChatRequest) (*types.Chat, error)
	CreateOrGetChat(ctx context.Context, req types.CreateChatRequest) (*types.Chat, error)
	GetMessages(ctx context.Context, req types.GetMessagesRequest) ([]types.Message, error)
	SendMessage(ctx context.Context, req types.SendMessageRequest) (*types.Message, error)
	MarkRead(ctx context.Context, req types.MarkReadRequest) error
	DeleteMessage(ctx context.Context, messageID string) error
	CreateBudget(ctx context.Context, req types.CreateBudgetRequest) (*types.Budget, error)
	GetChatBudgets(ctx context.Context, chatID, status string) ([]types.Budget, error)
	AcceptBudget(ctx context.Context, budgetID string) (*types.Budget, error)
	RejectBudget(ctx context.Context, budgetID string) (*types.Budget, error)
}

type marketplaceClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	breaker   *circuitbreaker.Breaker
}

// NewClient builds a Client against the given base URL. The auth token, when
// non-empty, is sent as a bearer credential on every request. Transport-level
// failures feed a circuit breaker so a dead backend fails fast instead of
// burning the full timeout on every call.
func NewClient(baseURL, authToken string, timeout time.Duration) Client {
	return &marketplaceClient{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
		breaker:   circuitbreaker.New("marketplace", breakerMaxFailures, breakerCooldown, nil),
	}
}

func (c *marketplaceClient) GetUserChats(ctx context.Context, userID, role string) ([]types.Chat, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", role)
	}

	var chats []types.Chat
	path := fmt.Sprintf("/api/chats/user/%s", url.PathEscape(userID))
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CheckChat asks whether a chat already exists without creating one. A 404 is
// a legitimate "no chat yet" answer, not an error.
func (c *marketplaceClient) CheckChat(ctx context.Context, req types.CreateChatRequest) (*types.Chat, error) {
	query := url.Values{}
	query.Set("clientId", req.ClientID)
	query.Set("professionalId", req.ProfessionalID)
	if req.ServiceID != nil {
		query.Set("serviceId", *req.ServiceID)
	}

	var chat types.Chat
	err := c.doJSON(ctx, http.MethodGet, "/api/chats/check", query, nil, &chat)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// CreateOrGetChat is idempotent server-side: repeated calls with the same
// (client, professional, service) key return the same chat.
func (c *marketplaceClient) CreateOrGetChat(ctx context.Context, req types.CreateChatRequest) (*types.Chat, error) {
	var chat types.Chat
	if err := c.doJSON(ctx, http.MethodPost, "/api/chats", nil, req, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *marketplaceClient) GetMessages(ctx context.Context, req types.GetMessagesRequest) ([]types.Message, error) {
	query := url.Values{}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		query.Set("offset", strconv.Itoa(req.Offset))
	}

	var messages []types.Message
	path := fmt.Sprintf("/api/chats/%s/messages", url.PathEscape(req.ChatID))
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *marketplaceClient) SendMessage(ctx context.Context, req types.SendMessageRequest) (*types.Message, error) {
	var message types.Message
	path := fmt.Sprintf("/api/chats/%s/messages", url.PathEscape(req.ChatID))
	if err := c.doJSON(ctx, http.MethodPost, path, nil, req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *marketplaceClient) MarkRead(ctx context.Context, req types.MarkReadRequest) error {
	path := fmt.Sprintf("/api/chats/%s/messages/read", url.PathEscape(req.ChatID))
	return c.doJSON(ctx, http.MethodPatch, path, nil, req, nil)
}

func (c *marketplaceClient) DeleteMessage(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/api/messages/%s", url.PathEscape(messageID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *marketplaceClient) CreateBudget(ctx context.Context, req types.CreateBudgetRequest) (*types.Budget, error) {
	var budget types.Budget
	if err := c.doJSON(ctx, http.MethodPost, "/api/budgets", nil, req, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// GetChatBudgets returns the chat's budgets, most recently created first; the
// head of the list is authoritative.
func (c *marketplaceClient) GetChatBudgets(ctx context.Context, chatID, status string) ([]types.Budget, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}

	var budgets []types.Budget
	path := fmt.Sprintf("/api/chats/%s/budgets", url.PathEscape(chatID))
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

func (c *marketplaceClient) AcceptBudget(ctx context.Context, budgetID string) (*types.Budget, error) {
	var budget types.Budget
	path := fmt.Sprintf("/api/budgets/%s/accept", url.PathEscape(budgetID))
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, nil, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

func (c *marketplaceClient) RejectBudget(ctx context.Context, budgetID string) (*types.Budget, error) {
	var budget types.Budget
	path := fmt.Sprintf("/api/budgets/%s/reject", url.PathEscape(budgetID))
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, nil, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

func (c *marketplaceClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	ctx, span := tracing.StartSpan(ctx, "marketplace."+method+" "+path,
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	var resp *http.Response
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var doErr error
		resp, doErr = c.client.Do(req) //nolint:bodyclose // closed below
		return doErr
	})
	if err != nil {
		appErr := errors.NewNetworkError(path, err)
		tracing.RecordError(ctx, appErr)
		return appErr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.New(errors.ErrCodeNotFound, fmt.Sprintf("%s returned 404", path))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp types.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr != nil || errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		appErr := errors.NewAPIError(path, resp.StatusCode, fmt.Errorf("%s", errResp.Message))
		tracing.RecordError(ctx, appErr)
		return appErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
