// Package session holds the process-local UI state for the single user
// session and decides, per user action, which gateway reads and writes keep
// that state consistent with storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/museworks/muse/internal/agent"
	"github.com/museworks/muse/internal/models"
	"go.uber.org/zap"
)

// Page is the current navigation page.
type Page string

const (
	PageChat   Page = "chat"
	PageImages Page = "images"
)

// ErrNoConversation is returned by Send when no conversation is selected.
var ErrNoConversation = errors.New("no conversation selected")

// Gateway is the slice of the persistence layer the controller needs.
// Satisfied by *db.Database.
type Gateway interface {
	CreateConversation(name string) *models.Conversation
	ListConversations() []models.Conversation
	DeleteConversation(id int64) bool
	AddMessage(conversationID int64, role, content string) bool
	ListMessages(conversationID int64) []models.Message
}

// Providers resolves a model id to its agent capability.
// Satisfied by *agent.Registry.
type Providers interface {
	Provider(model string) (agent.Provider, error)
}

// State is the session-scoped view state. Created once at session start,
// mutated only by Controller operations, never persisted.
type State struct {
	// CurrentConversationID is 0 when nothing is selected.
	CurrentConversationID int64                 `json:"current_conversation_id"`
	Messages              []models.Message      `json:"messages"`
	Conversations         []models.Conversation `json:"conversations"`
	SelectedModel         string                `json:"selected_model"`
	Page                  Page                  `json:"page"`
}

// Controller mediates between the view layer and the gateway. Each exported
// method is one complete user action; a mutex keeps them one-at-a-time.
type Controller struct {
	mu        sync.Mutex
	state     State
	gw        Gateway
	providers Providers
	logger    *zap.Logger
}

func New(gw Gateway, providers Providers, logger *zap.Logger) *Controller {
	return &Controller{
		state: State{
			Messages:      []models.Message{},
			Conversations: []models.Conversation{},
			SelectedModel: agent.DefaultModel,
			Page:          PageChat,
		},
		gw:        gw,
		providers: providers,
		logger:    logger,
	}
}

// Snapshot returns a copy of the session state for the view layer.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Messages = append([]models.Message(nil), c.state.Messages...)
	s.Conversations = append([]models.Conversation(nil), c.state.Conversations...)
	return s
}

// NewConversation creates an auto-numbered conversation, makes it current
// with an empty message cache, and refreshes the conversation list. Returns
// nil when the store rejected the create.
func (c *Controller) NewConversation() *models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Conversations = c.gw.ListConversations()
	name := fmt.Sprintf("Conversation %d", len(c.state.Conversations)+1)

	conv := c.gw.CreateConversation(name)
	if conv == nil {
		return nil
	}

	// The new conversation has no messages yet, so skip the read-back.
	c.state.CurrentConversationID = conv.ID
	c.state.Messages = []models.Message{}
	c.state.Conversations = c.gw.ListConversations()
	return conv
}

// Switch makes the given conversation current and reloads its messages from
// storage; the cache is never trusted across a switch.
func (c *Controller) Switch(id int64) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.CurrentConversationID = id
	c.state.Messages = c.gw.ListMessages(id)
	return append([]models.Message(nil), c.state.Messages...)
}

// Delete removes a conversation. If it was the current one, the selection
// and message cache are cleared; the conversation list is refreshed either
// way. Reports whether a conversation was actually removed.
func (c *Controller) Delete(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := c.gw.DeleteConversation(id)
	if deleted && id == c.state.CurrentConversationID {
		c.state.CurrentConversationID = 0
		c.state.Messages = []models.Message{}
	}
	c.state.Conversations = c.gw.ListConversations()
	return deleted
}

// Send writes the user's message through to storage, asks the selected
// model's agent for a reply with the prior turns as context, and writes that
// reply through as well. An agent failure still produces a durable
// assistant message carrying the error text; failures are shown, not
// dropped. Returns both persisted messages in order.
func (c *Controller) Send(ctx context.Context, content string) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentConversationID == 0 {
		return nil, ErrNoConversation
	}

	convID := c.state.CurrentConversationID
	if !c.gw.AddMessage(convID, models.RoleUser, content) {
		return nil, errors.New("failed to save message")
	}

	// Context for the agent is everything before this turn; the new input
	// is passed separately.
	history := append([]models.Message(nil), c.state.Messages...)
	c.state.Messages = append(c.state.Messages, models.Message{
		ConvID:  convID,
		Role:    models.RoleUser,
		Content: content,
	})

	reply := c.converse(ctx, content, history)

	if !c.gw.AddMessage(convID, models.RoleAssistant, reply) {
		c.logger.Error("failed to save assistant reply", zap.Int64("conversationID", convID))
	}
	c.state.Messages = append(c.state.Messages, models.Message{
		ConvID:  convID,
		Role:    models.RoleAssistant,
		Content: reply,
	})

	n := len(c.state.Messages)
	return append([]models.Message(nil), c.state.Messages[n-2:n]...), nil
}

func (c *Controller) converse(ctx context.Context, input string, history []models.Message) string {
	provider, err := c.providers.Provider(c.state.SelectedModel)
	if err != nil {
		c.logger.Error("agent unavailable",
			zap.Error(err),
			zap.String("model", c.state.SelectedModel))
		return fmt.Sprintf("The agent could not be initialized for model %q: %v", c.state.SelectedModel, err)
	}

	output, err := provider.Converse(ctx, input, history)
	if err != nil {
		c.logger.Error("agent invocation failed",
			zap.Error(err),
			zap.String("model", c.state.SelectedModel))
		return fmt.Sprintf("An error occurred during agent processing: %v", err)
	}
	return output
}

// SelectModel switches which agent subsequent sends use. Models outside the
// supported set fall back to the default. The active conversation and its
// messages are untouched.
func (c *Controller) SelectModel(model string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !agent.Supported(model) {
		c.logger.Warn("rejected unsupported model",
			zap.String("model", model),
			zap.String("fallback", agent.DefaultModel))
		model = agent.DefaultModel
	}
	c.state.SelectedModel = model
	return model
}

// SetPage switches the navigation page, falling back to the chat page for
// unknown values.
func (c *Controller) SetPage(p Page) Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p != PageChat && p != PageImages {
		p = PageChat
	}
	c.state.Page = p
	return p
}
