package models

import (
	"strconv"
	"time"

	"prochat/pkg/marketplace/types"
)

// epochMillis parses an RFC 3339 timestamp into epoch milliseconds. A value
// the server never set (or sent malformed) becomes 0 rather than an error so
// a single bad field cannot sink a whole payload.
func epochMillis(ts string) int64 {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// MessageFromAPI converts a wire message into the domain shape. IsMine is
// derived here by comparing the sender against the active user.
func MessageFromAPI(m types.Message, userID string) Message {
	msg := Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Kind:      MessageKind(m.MessageType),
		CreatedAt: epochMillis(m.CreatedAt),
		IsMine:    m.SenderID == userID,
		Read:      m.IsRead,
	}
	if m.Content != nil {
		msg.Content = *m.Content
	}
	if m.MediaURL != nil {
		msg.MediaRef = *m.MediaURL
	}
	if m.AudioDuration != nil {
		msg.AudioDurationSec = *m.AudioDuration
	}
	return msg
}

// MessagesFromAPI converts a history page, preserving server order.
func MessagesFromAPI(in []types.Message, userID string) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, MessageFromAPI(m, userID))
	}
	return out
}

// BudgetFromAPI converts a wire budget. An unparseable price is treated as 0,
// which downstream reads as "not yet quoted".
func BudgetFromAPI(b types.Budget) Budget {
	price, err := strconv.ParseFloat(b.Price, 64)
	if err != nil || price < 0 {
		price = 0
	}
	budget := Budget{
		ID:        b.ID,
		ChatID:    b.ChatID,
		ServiceID: b.ServiceID,
		Price:     price,
		Status:    BudgetStatus(b.Status),
		CreatedAt: epochMillis(b.CreatedAt),
		UpdatedAt: epochMillis(b.UpdatedAt),
	}
	if b.Description != nil {
		budget.Description = *b.Description
	}
	if b.ExpiresAt != nil {
		ms := epochMillis(*b.ExpiresAt)
		budget.ExpiresAt = &ms
	}
	return budget
}

// ChatFromAPI converts a wire chat.
func ChatFromAPI(c types.Chat) Chat {
	chat := Chat{
		ID:             c.ID,
		ClientID:       c.ClientID,
		ProfessionalID: c.ProfessionalID,
		LastMessageAt:  epochMillis(c.LastMessageAt),
		CreatedAt:      epochMillis(c.CreatedAt),
		UpdatedAt:      epochMillis(c.UpdatedAt),
	}
	if c.ServiceID != nil {
		chat.ServiceID = *c.ServiceID
	}
	return chat
}

// ChatSummaryFromAPI builds the inbox row for a chat.
func ChatSummaryFromAPI(c types.Chat) ChatSummary {
	s := ChatSummary{
		ChatID:        c.ID,
		ClientID:      c.ClientID,
		LastMessageAt: epochMillis(c.LastMessageAt),
	}
	if c.ServiceID != nil {
		s.ServiceID = *c.ServiceID
	}
	if c.Client != nil {
		s.ClientName = c.Client.Name
	}
	if c.Service != nil {
		s.ServiceTitle = c.Service.Title
		if s.ServiceID == "" {
			s.ServiceID = c.Service.ID
		}
	}
	if c.Count != nil {
		s.UnreadCount = c.Count.Messages
	}
	return s
}
