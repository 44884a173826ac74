package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/museworks/muse/internal/agent"
	"github.com/museworks/muse/internal/api"
	"github.com/museworks/muse/internal/gallery"
	"github.com/museworks/muse/internal/imagegen"
	"github.com/museworks/muse/internal/models"
	"github.com/museworks/muse/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	nextID        int64
	conversations []models.Conversation
	messages      map[int64][]models.Message
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{messages: make(map[int64][]models.Message)}
}

func (g *fakeGateway) CreateConversation(name string) *models.Conversation {
	g.nextID++
	conv := models.Conversation{ID: g.nextID, Name: name, CreatedAt: time.Now()}
	g.conversations = append(g.conversations, conv)
	return &conv
}

func (g *fakeGateway) ListConversations() []models.Conversation {
	out := make([]models.Conversation, 0, len(g.conversations))
	for i := len(g.conversations) - 1; i >= 0; i-- {
		out = append(out, g.conversations[i])
	}
	return out
}

func (g *fakeGateway) DeleteConversation(id int64) bool {
	for i, conv := range g.conversations {
		if conv.ID == id {
			g.conversations = append(g.conversations[:i], g.conversations[i+1:]...)
			delete(g.messages, id)
			return true
		}
	}
	return false
}

func (g *fakeGateway) AddMessage(conversationID int64, role, content string) bool {
	g.messages[conversationID] = append(g.messages[conversationID], models.Message{
		ConvID: conversationID, Role: role, Content: content,
	})
	return true
}

func (g *fakeGateway) ListMessages(conversationID int64) []models.Message {
	return append([]models.Message{}, g.messages[conversationID]...)
}

type fakeProvider struct{ reply string }

func (p *fakeProvider) Provider(model string) (agent.Provider, error) { return p, nil }

func (p *fakeProvider) Converse(context.Context, string, []models.Message) (string, error) {
	return p.reply, nil
}

type fakeGenerator struct {
	images []imagegen.Image
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, req imagegen.Request) ([]imagegen.Image, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.images, nil
}

func newHandler(t *testing.T, gen api.Generator) (*api.Handler, *session.Controller) {
	t.Helper()
	sess := session.New(newFakeGateway(), &fakeProvider{reply: "Hi there"}, zap.NewNop())
	return api.NewHandler(sess, gen, gallery.NewStore(), zap.NewNop()), sess
}

func TestGetSessionIncludesCatalog(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.GetSession(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SelectedModel string `json:"selected_model"`
		Page          string `json:"page"`
		Models        []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"models"`
		Styles []string `json:"styles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, agent.DefaultModel, resp.SelectedModel)
	assert.Equal(t, "chat", resp.Page)
	assert.Len(t, resp.Models, len(agent.SupportedModels()))
	assert.Equal(t, imagegen.Styles, resp.Styles)
}

func TestConversationLifecycle(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.Conversations(rec, httptest.NewRequest(http.MethodPost, "/api/conversations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var conv models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "Conversation 1", conv.Name)

	rec = httptest.NewRecorder()
	h.Conversations(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	var convs []models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)

	rec = httptest.NewRecorder()
	h.DeleteConversation(rec, httptest.NewRequest(http.MethodDelete,
		"/api/conversations/delete?conversation_id=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.DeleteConversation(rec, httptest.NewRequest(http.MethodDelete,
		"/api/conversations/delete?conversation_id=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "second delete finds nothing")
}

func TestHandleMessage(t *testing.T) {
	h, sess := newHandler(t, nil)
	require.NotNil(t, sess.NewConversation())

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"content":"Hello"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var turn []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	require.Len(t, turn, 2)
	assert.Equal(t, "Hello", turn[0].Content)
	assert.Equal(t, "Hi there", turn[1].Content)
}

func TestHandleMessageWithoutConversation(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"content":"Hello"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageEmptyContent(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"content":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectModelAnswersEffectiveModel(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.SelectModel(rec, httptest.NewRequest(http.MethodPost, "/api/model",
		strings.NewReader(`{"model":"made-up-model"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Model string `json:"model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, agent.DefaultModel, resp.Model)
}

func TestGenerateImagesRoundTrip(t *testing.T) {
	gen := &fakeGenerator{images: []imagegen.Image{{Data: []byte{1, 2}, MIMEType: "image/png"}}}
	h, _ := newHandler(t, gen)

	rec := httptest.NewRecorder()
	h.GenerateImages(rec, httptest.NewRequest(http.MethodPost, "/api/images/generate",
		strings.NewReader(`{"prompt":"a cat","count":1,"style":"Realistic"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry gallery.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Len(t, entry.ImageIDs, 1)

	rec = httptest.NewRecorder()
	h.GetImage(rec, httptest.NewRequest(http.MethodGet, "/api/images?id="+entry.ImageIDs[0], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{1, 2}, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	h.GetImageHistory(rec, httptest.NewRequest(http.MethodGet, "/api/images/history", nil))
	var history []gallery.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "a cat", history[0].Prompt)
}

func TestGenerateImagesDisabled(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.GenerateImages(rec, httptest.NewRequest(http.MethodPost, "/api/images/generate",
		strings.NewReader(`{"prompt":"a cat","count":1,"style":"Realistic"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetImageUnknown(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.GetImage(rec, httptest.NewRequest(http.MethodGet, "/api/images?id=bogus", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodGet, "/api/message", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.DeleteConversation(rec, httptest.NewRequest(http.MethodPost, "/api/conversations/delete", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
