// Package inbox maintains the professional's conversation list and unread
// counts, fed by the API and the general notification room.
package inbox

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"prochat/internal/metrics"
	"prochat/internal/models"
	"prochat/pkg/marketplace/types"

	"github.com/sirupsen/logrus"
)

// API is the slice of the marketplace client the inbox needs.
type API interface {
	GetUserChats(ctx context.Context, userID, role string) ([]types.Chat, error)
}

// Inbox caches chat summaries for the signed-in professional. An open chat
// session owns its own message list; the inbox only tracks the list view.
type Inbox struct {
	api    API
	userID string
	logger *logrus.Logger

	mu    sync.RWMutex
	chats map[string]*models.ChatSummary
}

// New builds an empty inbox for the given professional.
func New(api API, userID string, logger *logrus.Logger) *Inbox {
	return &Inbox{
		api:    api,
		userID: userID,
		logger: logger,
		chats:  make(map[string]*models.ChatSummary),
	}
}

// Refresh replaces the cached list with the server's view.
func (i *Inbox) Refresh(ctx context.Context) error {
	chats, err := i.api.GetUserChats(ctx, i.userID, "PRO")
	if err != nil {
		return err
	}

	next := make(map[string]*models.ChatSummary, len(chats))
	for _, chat := range chats {
		summary := models.ChatSummaryFromAPI(chat)
		next[summary.ChatID] = &summary
	}

	i.mu.Lock()
	i.chats = next
	i.mu.Unlock()

	metrics.SetGauge("inbox_chats", float64(len(next)), nil, "Cached conversations")
	return nil
}

// HandleEvent folds notification-room events into the cached list. Unknown
// events and malformed payloads are dropped.
func (i *Inbox) HandleEvent(ctx context.Context, event string, data json.RawMessage) {
	switch event {
	case models.EventNewMessage:
		var wire types.Message
		if err := json.Unmarshal(data, &wire); err != nil || wire.ChatID == "" {
			return
		}
		// Own sends don't count as unread.
		if wire.SenderID == i.userID {
			return
		}
		i.bump(wire)

	case models.EventMessageRead:
		var read models.MessageReadEvent
		if err := json.Unmarshal(data, &read); err != nil || read.ChatID == "" {
			return
		}
		if read.UserID != i.userID {
			return
		}
		i.zeroUnread(read.ChatID)

	case models.EventNewChat, models.EventChatListUpdate:
		// The payload only says "something changed"; re-read the list.
		if err := i.Refresh(ctx); err != nil {
			i.logger.WithError(err).Warn("Failed to refresh inbox after update event")
		}
	}
}

// Chats returns the cached summaries, most recently active first.
func (i *Inbox) Chats() []models.ChatSummary {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]models.ChatSummary, 0, len(i.chats))
	for _, summary := range i.chats {
		out = append(out, *summary)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].LastMessageAt > out[b].LastMessageAt
	})
	return out
}

// UnreadTotal sums unread counts across all chats.
func (i *Inbox) UnreadTotal() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	total := 0
	for _, summary := range i.chats {
		total += summary.UnreadCount
	}
	return total
}

func (i *Inbox) bump(wire types.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()

	summary, ok := i.chats[wire.ChatID]
	if !ok {
		summary = &models.ChatSummary{ChatID: wire.ChatID}
		i.chats[wire.ChatID] = summary
	}
	summary.UnreadCount++
	if ts := models.MessageFromAPI(wire, i.userID).CreatedAt; ts > summary.LastMessageAt {
		summary.LastMessageAt = ts
	}
}

func (i *Inbox) zeroUnread(chatID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if summary, ok := i.chats[chatID]; ok {
		summary.UnreadCount = 0
	}
}
