package models

import (
	"testing"

	"prochat/pkg/marketplace/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestEpochMillis(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"valid RFC 3339", "2026-08-01T10:00:00Z", 1785578400000},
		{"with offset", "2026-08-01T12:00:00+02:00", 1785578400000},
		{"empty", "", 0},
		{"malformed", "yesterday", 0},
		{"epoch number not accepted", "1785578400000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, epochMillis(tt.input))
		})
	}
}

func TestMessageFromAPI(t *testing.T) {
	wire := types.Message{
		ID:            "m1",
		ChatID:        "chat-1",
		SenderID:      "pro-1",
		Content:       strPtr("hello"),
		MessageType:   "TEXT",
		IsRead:        true,
		CreatedAt:     "2026-08-01T10:00:00Z",
		AudioDuration: intPtr(7),
		MediaURL:      strPtr("https://cdn/x.m4a"),
	}

	msg := MessageFromAPI(wire, "pro-1")

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, TextMessage, msg.Kind)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "https://cdn/x.m4a", msg.MediaRef)
	assert.Equal(t, 7, msg.AudioDurationSec)
	assert.True(t, msg.IsMine)
	assert.True(t, msg.Read)
	assert.Equal(t, int64(1785578400000), msg.CreatedAt)

	theirs := MessageFromAPI(wire, "someone-else")
	assert.False(t, theirs.IsMine)
}

func TestMessageFromAPI_NilOptionals(t *testing.T) {
	msg := MessageFromAPI(types.Message{ID: "m1", MessageType: "IMAGE"}, "pro-1")

	assert.Empty(t, msg.Content)
	assert.Empty(t, msg.MediaRef)
	assert.Zero(t, msg.AudioDurationSec)
	assert.Zero(t, msg.CreatedAt)
}

func TestMessagesFromAPI_PreservesOrder(t *testing.T) {
	wire := []types.Message{
		{ID: "m3", MessageType: "TEXT"},
		{ID: "m1", MessageType: "TEXT"},
		{ID: "m2", MessageType: "TEXT"},
	}

	out := MessagesFromAPI(wire, "pro-1")

	require.Len(t, out, 3)
	assert.Equal(t, "m3", out[0].ID)
	assert.Equal(t, "m1", out[1].ID)
	assert.Equal(t, "m2", out[2].ID)
}

func TestBudgetFromAPI_PriceParsing(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		expected float64
	}{
		{"decimal string", "150.50", 150.50},
		{"integer string", "200", 200},
		{"zero", "0", 0},
		{"empty", "", 0},
		{"garbage", "a lot", 0},
		{"negative clamped", "-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BudgetFromAPI(types.Budget{ID: "b1", Price: tt.price, Status: "PENDING"})
			assert.Equal(t, tt.expected, b.Price)
		})
	}
}

func TestBudgetFromAPI_Full(t *testing.T) {
	wire := types.Budget{
		ID:          "b1",
		ChatID:      "chat-1",
		ServiceID:   "svc-1",
		Price:       "99.90",
		Description: strPtr("materials included"),
		Status:      "ACCEPTED",
		CreatedAt:   "2026-08-01T10:00:00Z",
		UpdatedAt:   "2026-08-01T11:00:00Z",
		ExpiresAt:   strPtr("2026-08-08T10:00:00Z"),
	}

	b := BudgetFromAPI(wire)

	assert.Equal(t, BudgetAccepted, b.Status)
	assert.Equal(t, "materials included", b.Description)
	assert.True(t, b.UpdatedAt > b.CreatedAt)
	require.NotNil(t, b.ExpiresAt)
	assert.True(t, *b.ExpiresAt > b.UpdatedAt)
}

func TestBudgetQuotedAndSortKey(t *testing.T) {
	placeholder := &Budget{Price: 0, CreatedAt: 1000, UpdatedAt: 2000}
	assert.False(t, placeholder.Quoted())
	assert.Equal(t, int64(1000), placeholder.SortKey())

	quoted := &Budget{Price: 150, CreatedAt: 1000, UpdatedAt: 2000}
	assert.True(t, quoted.Quoted())
	assert.Equal(t, int64(2000), quoted.SortKey())

	var missing *Budget
	assert.False(t, missing.Quoted())
}

func TestChatSummaryFromAPI(t *testing.T) {
	wire := types.Chat{
		ID:            "chat-1",
		ClientID:      "client-1",
		ServiceID:     strPtr("svc-1"),
		LastMessageAt: "2026-08-01T10:00:00Z",
		Client:        &types.Person{ID: "client-1", Name: "Ana"},
		Service:       &types.ServiceRef{ID: "svc-1", Title: "Wall painting"},
		Count:         &types.ChatCount{Messages: 4},
	}

	s := ChatSummaryFromAPI(wire)

	assert.Equal(t, "chat-1", s.ChatID)
	assert.Equal(t, "Ana", s.ClientName)
	assert.Equal(t, "Wall painting", s.ServiceTitle)
	assert.Equal(t, 4, s.UnreadCount)
	assert.Equal(t, int64(1785578400000), s.LastMessageAt)
}

func TestChatSummaryFromAPI_MinimalPayload(t *testing.T) {
	s := ChatSummaryFromAPI(types.Chat{ID: "chat-1", ClientID: "client-1"})

	assert.Equal(t, "chat-1", s.ChatID)
	assert.Empty(t, s.ClientName)
	assert.Zero(t, s.UnreadCount)
}
