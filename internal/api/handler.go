package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/museworks/muse/internal/agent"
	"github.com/museworks/muse/internal/gallery"
	"github.com/museworks/muse/internal/imagegen"
	"github.com/museworks/muse/internal/session"
	"go.uber.org/zap"
)

// Generator is the image-generation capability the handler calls. Nil-able:
// the feature can be disabled while chat keeps working.
type Generator interface {
	Generate(ctx context.Context, req imagegen.Request) ([]imagegen.Image, error)
}

type Handler struct {
	sess    *session.Controller
	gen     Generator
	gallery *gallery.Store
	logger  *zap.Logger
}

func NewHandler(sess *session.Controller, gen Generator, store *gallery.Store, logger *zap.Logger) *Handler {
	return &Handler{
		sess:    sess,
		gen:     gen,
		gallery: store,
		logger:  logger,
	}
}

type messageRequest struct {
	Content string `json:"content"`
}

type modelRequest struct {
	Model string `json:"model"`
}

type pageRequest struct {
	Page string `json:"page"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
	Style  string `json:"style"`
}

type sessionResponse struct {
	session.State
	Models []modelEntry `json:"models"`
	Styles []string     `json:"styles"`
}

type modelEntry struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// GetSession returns the full session snapshot plus the model catalog so the
// view can render without further round-trips.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	models := make([]modelEntry, 0)
	for _, id := range agent.SupportedModels() {
		models = append(models, modelEntry{ID: id, Description: agent.Describe(id)})
	}

	h.writeJSON(w, sessionResponse{
		State:  h.sess.Snapshot(),
		Models: models,
		Styles: imagegen.Styles,
	})
}

// Conversations lists on GET and creates an auto-named conversation on POST.
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, h.sess.Snapshot().Conversations)

	case http.MethodPost:
		conv := h.sess.NewConversation()
		if conv == nil {
			h.logger.Error("failed to create conversation")
			http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, conv)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID, err := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if !h.sess.Delete(convID) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetMessages switches the session to the requested conversation and returns
// its freshly loaded messages.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID, err := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, h.sess.Switch(convID))
}

// HandleMessage runs one chat turn: persist the user message, invoke the
// agent, persist and return the reply.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Message content is required", http.StatusBadRequest)
		return
	}

	messages, err := h.sess.Send(r.Context(), req.Content)
	if err != nil {
		if errors.Is(err, session.ErrNoConversation) {
			http.Error(w, "Select or start a conversation first", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to process message", zap.Error(err))
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, messages)
}

// SelectModel applies the requested model, answering with whatever the
// session actually settled on after the supported-set check.
func (h *Handler) SelectModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, modelRequest{Model: h.sess.SelectModel(req.Model)})
}

func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, pageRequest{Page: string(h.sess.SetPage(session.Page(req.Page)))})
}

// GenerateImages runs one generation request and records it in the gallery.
func (h *Handler) GenerateImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.gen == nil {
		http.Error(w, "Image generation is not configured", http.StatusServiceUnavailable)
		return
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	images, err := h.gen.Generate(r.Context(), imagegen.Request{
		Prompt: req.Prompt,
		Count:  req.Count,
		Style:  req.Style,
	})
	if err != nil {
		h.logger.Error("image generation failed",
			zap.Error(err),
			zap.String("style", req.Style),
			zap.Int("count", req.Count))
		http.Error(w, "Image generation failed", http.StatusBadGateway)
		return
	}

	entry, err := h.gallery.Add(req.Prompt, req.Style, images)
	if err != nil {
		h.logger.Error("failed to store generated images", zap.Error(err))
		http.Error(w, "Failed to store images", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, entry)
}

// GetImage serves raw image bytes by gallery id.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, mime, err := h.gallery.Get(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write image", zap.Error(err))
	}
}

func (h *Handler) GetImageHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.gallery.History())
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
