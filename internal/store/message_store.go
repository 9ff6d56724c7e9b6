// Package store holds a chat's message list and reconciles optimistic local
// sends with server confirmations and real-time pushes.
package store

import (
	"fmt"
	"sync"
	"time"

	"prochat/internal/metrics"
	"prochat/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageStore is the in-memory message list for one chat session. Internal
// order is arrival order; display ordering is the merge engine's job, so the
// store never sorts.
type MessageStore struct {
	mu       sync.RWMutex
	userID   string
	messages []models.Message
	pending  map[string]struct{} // temp ids awaiting confirmation
	logger   *logrus.Logger
}

// NewMessageStore creates a store for the given active user.
func NewMessageStore(userID string, logger *logrus.Logger) *MessageStore {
	return &MessageStore{
		userID:  userID,
		pending: make(map[string]struct{}),
		logger:  logger,
	}
}

// newTempID builds a locally-unique temporary id: epoch-ms prefix for rough
// ordering plus a random suffix against same-millisecond collisions.
func newTempID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// AppendOptimistic appends a locally-originated message and returns its
// temporary id for later Confirm or Rollback. No network is touched here.
func (s *MessageStore) AppendOptimistic(draft models.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempID := newTempID()
	draft.ID = tempID
	draft.SenderID = s.userID
	draft.IsMine = true
	if draft.CreatedAt == 0 {
		draft.CreatedAt = time.Now().UnixMilli()
	}

	s.messages = append(s.messages, draft)
	s.pending[tempID] = struct{}{}

	metrics.IncrementCounter("messages_optimistic", nil, "Optimistically appended messages")
	return tempID
}

// Confirm replaces the temporary entry with the server's message, adopting
// the server id and timestamps. Unknown temp ids are a no-op: the real-time
// echo may already have reconciled the entry.
func (s *MessageStore) Confirm(tempID string, server models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(tempID)
	if idx < 0 {
		s.logger.WithField("temp_id", tempID).Debug("Confirm for unknown temp id, already reconciled")
		return
	}
	delete(s.pending, tempID)

	// With several sends in flight the echo lands as a plain append rather
	// than reconciling a temp entry; the server id is then already present
	// and the temp entry is the duplicate.
	if dup := s.indexOf(server.ID); dup >= 0 && dup != idx {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		metrics.IncrementCounter("messages_deduplicated", nil, "Duplicate messages suppressed")
		return
	}

	server.IsMine = server.SenderID == s.userID
	s.messages[idx] = server
}

// Rollback removes the temporary entry after a failed send. The caller
// surfaces the failure to the user.
func (s *MessageStore) Rollback(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(tempID); idx >= 0 {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	}
	delete(s.pending, tempID)

	metrics.IncrementCounter("messages_rolled_back", nil, "Optimistic messages rolled back after send failure")
}

// ReceiveRemote folds in a message arriving over the real-time channel.
//
// Echoes of our own sends may race the HTTP confirmation: when exactly one
// optimistic entry is outstanding the echo reconciles it; otherwise the echo
// is appended only if the server id isn't already present. Counterpart
// messages are appended with plain duplicate suppression by id.
func (s *MessageStore) ReceiveRemote(server models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	server.IsMine = server.SenderID == s.userID

	if server.IsMine {
		if len(s.pending) == 1 {
			var tempID string
			for id := range s.pending {
				tempID = id
			}
			if idx := s.indexOf(tempID); idx >= 0 {
				s.messages[idx] = server
				delete(s.pending, tempID)
				return
			}
			delete(s.pending, tempID)
		}
		if s.indexOf(server.ID) >= 0 {
			metrics.IncrementCounter("messages_deduplicated", nil, "Duplicate messages suppressed")
			return
		}
		s.messages = append(s.messages, server)
		return
	}

	if s.indexOf(server.ID) >= 0 {
		metrics.IncrementCounter("messages_deduplicated", nil, "Duplicate messages suppressed")
		return
	}
	s.messages = append(s.messages, server)
	metrics.IncrementCounter("messages_received", nil, "Messages received from the counterpart")
}

// Remove deletes an entry by id. Idempotent.
func (s *MessageStore) Remove(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(messageID); idx >= 0 {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	}
	delete(s.pending, messageID)
}

// MergeHistory folds a freshly fetched history page under the current list.
// Entries that arrived over the real-time channel while the fetch was in
// flight survive; page entries already present by id are skipped. Pending
// reconciliation state is untouched.
func (s *MessageStore) MergeHistory(history []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]models.Message, 0, len(history)+len(s.messages))
	seen := make(map[string]struct{}, len(history))
	for _, m := range history {
		merged = append(merged, m)
		seen[m.ID] = struct{}{}
	}
	for _, m := range s.messages {
		if _, ok := seen[m.ID]; ok {
			metrics.IncrementCounter("messages_deduplicated", nil, "Duplicate messages suppressed")
			continue
		}
		merged = append(merged, m)
	}
	s.messages = merged
}

// Reset replaces the whole list with freshly fetched history and clears all
// pending reconciliation state. Used on explicit reload.
func (s *MessageStore) Reset(messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]models.Message, len(messages))
	copy(s.messages, messages)
	s.pending = make(map[string]struct{})
}

// Messages returns a snapshot copy of the current list.
func (s *MessageStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// PendingCount reports how many optimistic entries await confirmation.
func (s *MessageStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *MessageStore) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
