package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prochat/internal/errors"
	"prochat/pkg/marketplace/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGetUserChats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chats/user/pro-1", r.URL.Path)
		assert.Equal(t, "PRO", r.URL.Query().Get("role"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]types.Chat{{ID: "chat-1"}, {ID: "chat-2"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token", 5*time.Second)
	chats, err := client.GetUserChats(context.Background(), "pro-1", "PRO")

	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "chat-1", chats[0].ID)
}

func TestCheckChat_NotFoundMeansNoChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/check", r.URL.Path)
		assert.Equal(t, "client-1", r.URL.Query().Get("clientId"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	chat, err := client.CheckChat(context.Background(), types.CreateChatRequest{
		ClientID:       "client-1",
		ProfessionalID: "pro-1",
	})

	require.NoError(t, err)
	assert.Nil(t, chat)
}

func TestCreateOrGetChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chats", r.URL.Path)

		var req types.CreateChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client-1", req.ClientID)
		assert.Equal(t, "pro-1", req.ProfessionalID)
		require.NotNil(t, req.ServiceID)
		assert.Equal(t, "svc-1", *req.ServiceID)

		json.NewEncoder(w).Encode(types.Chat{ID: "chat-1", ClientID: req.ClientID})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	chat, err := client.CreateOrGetChat(context.Background(), types.CreateChatRequest{
		ClientID:       "client-1",
		ProfessionalID: "pro-1",
		ServiceID:      strPtr("svc-1"),
	})

	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "chat-1", chat.ID)
}

func TestGetMessages_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/chat-1/messages", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "100", r.URL.Query().Get("offset"))

		json.NewEncoder(w).Encode([]types.Message{{ID: "m1"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	messages, err := client.GetMessages(context.Background(), types.GetMessagesRequest{
		ChatID: "chat-1",
		Limit:  50,
		Offset: 100,
	})

	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chats/chat-1/messages", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "pro-1", payload["senderId"])
		assert.Equal(t, "hello", payload["content"])
		assert.Equal(t, "TEXT", payload["messageType"])
		// The chat id travels in the path, never the body.
		assert.NotContains(t, payload, "chatId")

		json.NewEncoder(w).Encode(types.Message{ID: "srv-1", ChatID: "chat-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	sent, err := client.SendMessage(context.Background(), types.SendMessageRequest{
		ChatID:      "chat-1",
		SenderID:    "pro-1",
		Content:     strPtr("hello"),
		MessageType: "TEXT",
	})

	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)
}

func TestMarkRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/chats/chat-1/messages/read", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	err := client.MarkRead(context.Background(), types.MarkReadRequest{ChatID: "chat-1", UserID: "pro-1"})

	assert.NoError(t, err)
}

func TestDeleteMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/messages/m1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	assert.NoError(t, client.DeleteMessage(context.Background(), "m1"))
}

func TestGetChatBudgets_StatusFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/chat-1/budgets", r.URL.Path)
		assert.Equal(t, "PENDING", r.URL.Query().Get("status"))

		json.NewEncoder(w).Encode([]types.Budget{{ID: "b1", Price: "100.00"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	budgets, err := client.GetChatBudgets(context.Background(), "chat-1", "PENDING")

	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "b1", budgets[0].ID)
}

func TestBudgetLifecycleEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/budgets":
			assert.Equal(t, http.MethodPost, r.Method)
			json.NewEncoder(w).Encode(types.Budget{ID: "b1", Status: "PENDING"})
		case "/api/budgets/b1/accept":
			assert.Equal(t, http.MethodPatch, r.Method)
			json.NewEncoder(w).Encode(types.Budget{ID: "b1", Status: "ACCEPTED"})
		case "/api/budgets/b1/reject":
			assert.Equal(t, http.MethodPatch, r.Method)
			json.NewEncoder(w).Encode(types.Budget{ID: "b1", Status: "REJECTED"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	ctx := context.Background()

	created, err := client.CreateBudget(ctx, types.CreateBudgetRequest{ChatID: "chat-1", ServiceID: "svc-1", Price: 100})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", created.Status)

	accepted, err := client.AcceptBudget(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", accepted.Status)

	rejected, err := client.RejectBudget(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Status)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		body         string
		expectedCode errors.ErrorCode
		retryable    bool
	}{
		{"not found", 404, "", errors.ErrCodeNotFound, false},
		{"server error", 500, `{"message":"boom"}`, errors.ErrCodeMarketplaceAPI, true},
		{"throttled", 429, "", errors.ErrCodeMarketplaceAPI, true},
		{"bad request", 400, `{"message":"invalid payload"}`, errors.ErrCodeMarketplaceAPI, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL, "", 5*time.Second)
			_, err := client.GetUserChats(context.Background(), "pro-1", "")

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.expectedCode))
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	client := NewClient(server.URL, "", time.Second)
	_, err := client.GetUserChats(context.Background(), "pro-1", "")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNetworkFailure))
	assert.True(t, errors.IsRetryable(err))
}

func TestBreakerOpensAfterRepeatedTransportFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", time.Second)
	for i := 0; i < breakerMaxFailures; i++ {
		_, err := client.GetUserChats(context.Background(), "pro-1", "")
		require.Error(t, err)
	}

	// The next call is refused without touching the network.
	start := time.Now()
	_, err := client.GetUserChats(context.Background(), "pro-1", "")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNetworkFailure))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
