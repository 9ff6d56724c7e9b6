// Package session composes the message store, budget controller and recorder
// into the single public contract the presentation layer consumes.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"prochat/internal/budget"
	"prochat/internal/device"
	"prochat/internal/errors"
	"prochat/internal/metrics"
	"prochat/internal/models"
	"prochat/internal/recording"
	"prochat/internal/store"
	"prochat/internal/timeline"
	"prochat/pkg/marketplace/types"
	"prochat/pkg/realtime"

	"github.com/sirupsen/logrus"
)

// State is the coordinator's lifecycle phase. Closed is terminal.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateClosed        State = "closed"
)

// API is the slice of the marketplace client the coordinator needs.
type API interface {
	CreateOrGetChat(ctx context.Context, req types.CreateChatRequest) (*types.Chat, error)
	GetMessages(ctx context.Context, req types.GetMessagesRequest) ([]types.Message, error)
	SendMessage(ctx context.Context, req types.SendMessageRequest) (*types.Message, error)
	MarkRead(ctx context.Context, req types.MarkReadRequest) error
	DeleteMessage(ctx context.Context, messageID string) error
	CreateBudget(ctx context.Context, req types.CreateBudgetRequest) (*types.Budget, error)
	GetChatBudgets(ctx context.Context, chatID, status string) ([]types.Budget, error)
}

// Realtime is the slice of the connection manager the coordinator needs: a
// handle on the shared connection, never the raw transport.
type Realtime interface {
	JoinChat(ctx context.Context, chatID string, handler realtime.Handler) (*realtime.Subscription, error)
	JoinProfessional(ctx context.Context, userID string, handler realtime.Handler) (*realtime.Subscription, error)
	Unsubscribe(ctx context.Context, sub *realtime.Subscription) error
}

// Config identifies the conversation a session is for.
type Config struct {
	UserID    string // the signed-in professional
	ClientID  string // counterpart
	ServiceID string
	ChatID    string // optional; create-or-get when empty

	PageLimit         int
	BudgetReloadDelay time.Duration
	SendPolicy        budget.SendPolicy
}

// Coordinator owns one chat session end to end: chat identity resolution,
// room membership, the message list, the current budget and the recording
// state machine.
type Coordinator struct {
	cfg      Config
	api      API
	rt       Realtime
	store    *store.MessageStore
	budget   *budget.Controller
	recorder *recording.Recorder
	picker   device.ImagePicker
	logger   *logrus.Logger

	mu      sync.Mutex
	state   State
	chatID  string
	draft   string
	chatSub *realtime.Subscription
	proSub  *realtime.Subscription
	torn    bool
}

// NewCoordinator wires a session. Collaborators are injected; nothing touches
// the network until Initialize.
func NewCoordinator(cfg Config, api API, rt Realtime, recorder *recording.Recorder, picker device.ImagePicker, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		api:      api,
		rt:       rt,
		store:    store.NewMessageStore(cfg.UserID, logger),
		budget:   budget.NewController(api, cfg.SendPolicy, cfg.BudgetReloadDelay, logger),
		recorder: recorder,
		picker:   picker,
		logger:   logger,
		state:    StateUninitialized,
	}
}

// Initialize resolves the chat id, joins the chat room, loads history and
// the current budget, joins the professional's notification room, and fires
// the mark-read notification. On failure the session is left uninitialized
// with no partial chat id.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		state := c.state
		c.mu.Unlock()
		return errors.NewStateError("initialize", string(state))
	}
	c.state = StateLoading
	c.mu.Unlock()

	chatID, err := c.resolveChatID(ctx)
	if err != nil {
		c.failInitialize(ctx, nil)
		return err
	}

	// Join before fetching history so nothing pushed during the fetch is
	// lost; the page is folded in with id-dedup once it arrives.
	chatSub, err := c.rt.JoinChat(ctx, chatID, c.handleRealtimeEvent)
	if err != nil {
		c.failInitialize(ctx, nil)
		return errors.Wrap(err, errors.ErrCodeRealtimeChannel, "failed to join chat room").
			WithUserMessage("Could not start the chat")
	}
	c.mu.Lock()
	c.chatID = chatID
	c.mu.Unlock()

	history, err := c.api.GetMessages(ctx, types.GetMessagesRequest{ChatID: chatID, Limit: c.cfg.PageLimit})
	if err != nil {
		c.failInitialize(ctx, chatSub)
		return errors.Wrap(err, errors.ErrCodeNetworkFailure, "failed to load chat history").
			WithUserMessage("Could not start the chat")
	}

	c.budget.Bind(chatID, c.cfg.ServiceID)
	c.budget.Load(ctx)

	proSub, err := c.rt.JoinProfessional(ctx, c.cfg.UserID, c.handleRealtimeEvent)
	if err != nil {
		c.failInitialize(ctx, chatSub)
		return errors.Wrap(err, errors.ErrCodeRealtimeChannel, "failed to join notification room").
			WithUserMessage("Could not start the chat")
	}

	c.store.MergeHistory(models.MessagesFromAPI(history, c.cfg.UserID))

	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		// Teardown won the race while we were joining; it saw no
		// subscriptions, so leaving the rooms is on us.
		_ = c.rt.Unsubscribe(ctx, chatSub)
		_ = c.rt.Unsubscribe(ctx, proSub)
		return errors.NewStateError("initialize", string(StateClosed))
	}
	c.chatSub = chatSub
	c.proSub = proSub
	c.state = StateReady
	c.mu.Unlock()

	c.markRead()

	c.logger.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"messages": len(history),
	}).Info("Chat session ready")
	return nil
}

// resolveChatID uses the caller-supplied id when present, otherwise performs
// the idempotent create-or-get keyed on (client, professional, service).
func (c *Coordinator) resolveChatID(ctx context.Context) (string, error) {
	if c.cfg.ChatID != "" {
		return c.cfg.ChatID, nil
	}

	req := types.CreateChatRequest{
		ClientID:       c.cfg.ClientID,
		ProfessionalID: c.cfg.UserID,
	}
	if c.cfg.ServiceID != "" {
		serviceID := c.cfg.ServiceID
		req.ServiceID = &serviceID
	}

	chat, err := c.api.CreateOrGetChat(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeNetworkFailure, "failed to create or get chat").
			WithUserMessage("Could not start the chat")
	}
	return chat.ID, nil
}

// SendText sends a text message with optimistic local echo. Blank input is a
// no-op. On failure the optimistic entry is rolled back and the error
// surfaced; sends are never retried automatically.
func (c *Coordinator) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	chatID, err := c.readyChatID("sendText")
	if err != nil {
		return err
	}

	c.SetDraft("")

	content := text
	return c.send(ctx, chatID, models.Message{
		ChatID:  chatID,
		Kind:    models.TextMessage,
		Content: text,
	}, types.SendMessageRequest{
		ChatID:      chatID,
		SenderID:    c.cfg.UserID,
		Content:     &content,
		MessageType: string(models.TextMessage),
	})
}

// SendImage obtains an image from the device and sends it. Permission denial
// aborts with no state change; a cancelled picker is a silent no-op.
func (c *Coordinator) SendImage(ctx context.Context, source device.ImageSource) error {
	chatID, err := c.readyChatID("sendImage")
	if err != nil {
		return err
	}

	if err := c.picker.RequestPermission(ctx, source); err != nil {
		resource := "photo library"
		if source == device.SourceCamera {
			resource = "camera"
		}
		return errors.NewPermissionError(resource)
	}

	mediaRef, err := c.picker.Pick(ctx, source)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "image selection failed").
			WithUserMessage("Could not select the image")
	}
	if mediaRef == "" {
		return nil
	}

	mediaURL := mediaRef
	return c.send(ctx, chatID, models.Message{
		ChatID:   chatID,
		Kind:     models.ImageMessage,
		MediaRef: mediaRef,
	}, types.SendMessageRequest{
		ChatID:      chatID,
		SenderID:    c.cfg.UserID,
		MessageType: string(models.ImageMessage),
		MediaURL:    &mediaURL,
	})
}

// SendAudio sends a finished recording artifact.
func (c *Coordinator) SendAudio(ctx context.Context, artifactRef string, durationSec int) error {
	chatID, err := c.readyChatID("sendAudio")
	if err != nil {
		return err
	}

	mediaURL := artifactRef
	duration := durationSec
	return c.send(ctx, chatID, models.Message{
		ChatID:           chatID,
		Kind:             models.AudioMessage,
		MediaRef:         artifactRef,
		AudioDurationSec: durationSec,
	}, types.SendMessageRequest{
		ChatID:        chatID,
		SenderID:      c.cfg.UserID,
		MessageType:   string(models.AudioMessage),
		MediaURL:      &mediaURL,
		AudioDuration: &duration,
	})
}

// send runs the optimistic append / API call / confirm-or-rollback cycle.
// Each in-flight send is keyed by its own temp id, so interleaved
// confirmations cannot cross-contaminate.
func (c *Coordinator) send(ctx context.Context, chatID string, draft models.Message, req types.SendMessageRequest) error {
	tempID := c.store.AppendOptimistic(draft)

	sent, err := c.api.SendMessage(ctx, req)
	if err != nil {
		c.store.Rollback(tempID)
		return errors.Wrap(err, errors.ErrCodeNetworkFailure, "failed to send message").
			WithUserMessage("Could not send the message")
	}

	if c.isClosed() {
		return nil
	}
	c.store.Confirm(tempID, models.MessageFromAPI(*sent, c.cfg.UserID))
	metrics.IncrementCounter("messages_sent", map[string]string{"kind": string(draft.Kind)}, "Messages sent")
	return nil
}

// StartRecording begins audio capture.
func (c *Coordinator) StartRecording(ctx context.Context) error {
	if _, err := c.readyChatID("startRecording"); err != nil {
		return err
	}
	return c.recorder.Start(ctx)
}

// StopRecording finalizes the capture and, when audio was actually captured,
// sends it as an audio message.
func (c *Coordinator) StopRecording(ctx context.Context) error {
	result, err := c.recorder.Stop(ctx)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	defer c.recorder.Reset()
	return c.SendAudio(ctx, result.ArtifactRef, result.DurationSec)
}

// CancelRecording discards the capture without emitting a message.
func (c *Coordinator) CancelRecording(ctx context.Context) error {
	return c.recorder.Cancel(ctx)
}

// DeleteMessage deletes server-side first; the local entry is removed only on
// success. Deletion is never assumed to succeed.
func (c *Coordinator) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := c.readyChatID("deleteMessage"); err != nil {
		return err
	}

	if err := c.api.DeleteMessage(ctx, messageID); err != nil {
		return errors.Wrap(err, errors.ErrCodeNetworkFailure, "failed to delete message").
			WithUserMessage("Could not delete the message")
	}
	if !c.isClosed() {
		c.store.Remove(messageID)
	}
	return nil
}

// SendBudget creates a quote for this chat and applies it locally; the
// confirming re-load runs through the budget controller's debounce.
func (c *Coordinator) SendBudget(ctx context.Context, price float64, description string) error {
	chatID, err := c.readyChatID("sendBudget")
	if err != nil {
		return err
	}

	req := types.CreateBudgetRequest{
		ChatID:    chatID,
		ServiceID: c.cfg.ServiceID,
		Price:     price,
	}
	if description != "" {
		req.Description = &description
	}

	created, err := c.api.CreateBudget(ctx, req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeNetworkFailure, "failed to create budget").
			WithUserMessage("Could not send the quote")
	}

	if !c.isClosed() {
		b := models.BudgetFromAPI(*created)
		c.budget.ApplyRemoteUpdate(models.BudgetEvent{ChatID: chatID, Budget: &b})
	}
	return nil
}

// Reload re-fetches history and the budget. Explicit only; the session never
// reloads behind the caller's back.
func (c *Coordinator) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady {
		state := c.state
		c.mu.Unlock()
		return errors.NewStateError("reload", string(state))
	}
	c.state = StateLoading
	chatID := c.chatID
	c.mu.Unlock()

	history, err := c.api.GetMessages(ctx, types.GetMessagesRequest{ChatID: chatID, Limit: c.cfg.PageLimit})
	if err != nil {
		c.setState(StateReady)
		return errors.Wrap(err, errors.ErrCodeNetworkFailure, "failed to reload chat history")
	}

	c.store.Reset(models.MessagesFromAPI(history, c.cfg.UserID))
	c.budget.Load(ctx)
	c.setState(StateReady)
	return nil
}

// Teardown leaves the real-time rooms and closes the session. Terminal, and
// required exactly once per successful Initialize; events arriving afterwards
// are dropped.
func (c *Coordinator) Teardown(ctx context.Context) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	c.state = StateClosed
	chatID := c.chatID
	chatSub, proSub := c.chatSub, c.proSub
	c.chatSub, c.proSub = nil, nil
	c.mu.Unlock()

	c.budget.Close()
	if chatSub != nil {
		if err := c.rt.Unsubscribe(ctx, chatSub); err != nil {
			c.logger.WithError(err).Warn("Failed to leave chat room")
		}
	}
	if proSub != nil {
		if err := c.rt.Unsubscribe(ctx, proSub); err != nil {
			c.logger.WithError(err).Warn("Failed to leave notification room")
		}
	}

	c.logger.WithField("chat_id", chatID).Info("Chat session closed")
}

// Timeline merges the current messages and budget into the display sequence.
func (c *Coordinator) Timeline() []models.TimelineItem {
	return timeline.Merge(c.store.Messages(), c.budget.Current())
}

// Messages returns a snapshot of the raw message list.
func (c *Coordinator) Messages() []models.Message {
	return c.store.Messages()
}

// CurrentBudget returns the chat's current budget, nil when none.
func (c *Coordinator) CurrentBudget() *models.Budget {
	return c.budget.Current()
}

// CanSendMessages evaluates the session's send policy.
func (c *Coordinator) CanSendMessages() bool {
	return c.budget.CanSendMessages()
}

// RecordingState exposes the recorder phase for the input bar.
func (c *Coordinator) RecordingState() recording.State {
	return c.recorder.State()
}

// State returns the coordinator lifecycle phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChatID returns the resolved chat id, empty until the chat room is joined.
func (c *Coordinator) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Draft returns the current input draft.
func (c *Coordinator) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft stores the input draft.
func (c *Coordinator) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// handleRealtimeEvent is the single entry point for pushed events. Events for
// other chats, malformed payloads and anything after teardown are dropped.
func (c *Coordinator) handleRealtimeEvent(event string, data json.RawMessage) {
	if c.isClosed() {
		return
	}

	switch event {
	case models.EventNewMessage:
		var wire types.Message
		if err := json.Unmarshal(data, &wire); err != nil || wire.ID == "" {
			c.logger.WithField("event", event).Debug("Dropping malformed message event")
			return
		}
		if wire.ChatID != c.ChatID() {
			return
		}
		c.store.ReceiveRemote(models.MessageFromAPI(wire, c.cfg.UserID))

	case models.EventNewBudget:
		var budgetEvent models.BudgetEvent
		if err := json.Unmarshal(data, &budgetEvent); err != nil {
			c.logger.WithField("event", event).Debug("Dropping malformed budget event")
			return
		}
		c.budget.ApplyRemoteUpdate(budgetEvent)

	case models.EventMessageRead:
		// Read receipts update the inbox, not the open session.

	default:
		// Other rooms' traffic (new-chat, chat-list-update) is not session
		// state; the inbox consumes it.
	}
}

// markRead notifies the backend that the session was opened, zeroing unread
// counts elsewhere. Fire and forget; failure is silent.
func (c *Coordinator) markRead() {
	chatID := c.ChatID()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.api.MarkRead(ctx, types.MarkReadRequest{ChatID: chatID, UserID: c.cfg.UserID}); err != nil {
			c.logger.WithError(err).WithField("chat_id", chatID).Debug("Failed to mark chat as read")
		}
	}()
}

func (c *Coordinator) readyChatID(operation string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return "", errors.NewStateError(operation, string(c.state))
	}
	return c.chatID, nil
}

// failInitialize unwinds a partially-initialized session: leaves the chat
// room when already joined, discards any pushes buffered meanwhile, and
// clears the provisional chat id. A session closed by a concurrent Teardown
// stays closed.
func (c *Coordinator) failInitialize(ctx context.Context, chatSub *realtime.Subscription) {
	if chatSub != nil {
		_ = c.rt.Unsubscribe(ctx, chatSub)
	}
	c.store.Reset(nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = StateUninitialized
		c.chatID = ""
	}
}

func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = state
	}
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateClosed
}
