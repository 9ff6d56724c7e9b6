// Package budget tracks the single current quote for a chat and decides
// whether outbound messaging is permitted.
package budget

import (
	"context"
	"sync"
	"time"

	"prochat/internal/models"
	"prochat/pkg/marketplace/types"

	"github.com/sirupsen/logrus"
)

// API is the slice of the marketplace client the controller needs.
type API interface {
	GetChatBudgets(ctx context.Context, chatID, status string) ([]types.Budget, error)
}

// SendPolicy decides whether messaging is allowed given the current budget.
// The policy is injectable because the product has flip-flopped on it;
// swapping it must never touch callers.
type SendPolicy func(current *models.Budget) bool

// AllowAll permits messaging regardless of budget state. Current policy.
func AllowAll(*models.Budget) bool { return true }

// StatusGate permits messaging only while the budget is pending or accepted.
// Earlier revisions shipped this behavior.
func StatusGate(current *models.Budget) bool {
	if current == nil {
		return false
	}
	return current.Status == models.BudgetPending || current.Status == models.BudgetAccepted
}

// Controller holds the single current budget for one chat. Load always
// replaces the held value, never merges.
type Controller struct {
	api         API
	policy      SendPolicy
	reloadDelay time.Duration
	logger      *logrus.Logger

	mu        sync.Mutex
	chatID    string
	serviceID string
	current   *models.Budget
	timer     *time.Timer
	closed    bool
}

// NewController builds a controller with the given send policy. A nil policy
// defaults to AllowAll.
func NewController(api API, policy SendPolicy, reloadDelay time.Duration, logger *logrus.Logger) *Controller {
	if policy == nil {
		policy = AllowAll
	}
	return &Controller{
		api:         api,
		policy:      policy,
		reloadDelay: reloadDelay,
		logger:      logger,
	}
}

// Bind points the controller at a chat. Any previously held budget is
// dropped; a different chat's budget must never leak across.
func (c *Controller) Bind(chatID, serviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID = chatID
	c.serviceID = serviceID
	c.current = nil
}

// Load fetches the chat's budgets and keeps the most recently created one
// (head of the server-sorted list). Fetch failures are logged, not returned:
// a missing budget must not block the chat screen. On success the held value
// is replaced outright, including with nil on an empty result.
func (c *Controller) Load(ctx context.Context) *models.Budget {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == "" {
		return nil
	}

	budgets, err := c.api.GetChatBudgets(ctx, chatID, "")
	if err != nil {
		c.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to load budget")
		return nil
	}

	var next *models.Budget
	if len(budgets) > 0 {
		b := models.BudgetFromAPI(budgets[0])
		next = &b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chatID != chatID {
		// Re-bound while the fetch was in flight.
		return nil
	}
	c.current = next
	return c.copyCurrentLocked()
}

// ApplyRemoteUpdate handles a new-budget push. Events for other chats are
// dropped. A shape-valid budget in the payload is applied immediately; either
// way a confirming re-load is scheduled after the debounce delay, giving the
// backend time to finish its own write before we re-read.
func (c *Controller) ApplyRemoteUpdate(event models.BudgetEvent) {
	c.mu.Lock()

	if c.closed || c.chatID == "" {
		c.mu.Unlock()
		return
	}
	matches := event.ChatID == c.chatID ||
		(event.ServiceID != "" && event.ServiceID == c.serviceID) ||
		(event.Budget != nil && event.Budget.ChatID == c.chatID)
	if !matches {
		c.mu.Unlock()
		return
	}

	if event.Budget != nil && event.Budget.ID != "" {
		b := *event.Budget
		c.current = &b
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.reloadDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Load(ctx)
	})
	c.mu.Unlock()
}

// Current returns a copy of the held budget, nil when none.
func (c *Controller) Current() *models.Budget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyCurrentLocked()
}

// CanSendMessages evaluates the injected policy against the current budget.
func (c *Controller) CanSendMessages() bool {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	return c.policy(current)
}

// Close cancels any scheduled re-load. Further remote updates are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) copyCurrentLocked() *models.Budget {
	if c.current == nil {
		return nil
	}
	b := *c.current
	return &b
}
