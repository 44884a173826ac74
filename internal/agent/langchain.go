package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/museworks/muse/internal/models"
	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/memory"
	"github.com/tmc/langchaingo/tools"
	"go.uber.org/zap"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	// maxIterations bounds the agent's thought/action loop.
	maxIterations   = 5
	converseTimeout = 60 * time.Second
)

// langchainProvider runs a conversational tool-using agent over any
// langchaingo chat model.
type langchainProvider struct {
	llm     llms.Model
	tools   []tools.Tool
	counter tokenCounter
	logger  *zap.Logger
}

func newGoogleProvider(model, apiKey string, agentTools []tools.Tool, logger *zap.Logger) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not configured for model %s", model)
	}
	llm, err := googleai.New(context.Background(),
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google provider: %w", err)
	}
	return &langchainProvider{llm: llm, tools: agentTools, counter: &tiktokenCounter{}, logger: logger}, nil
}

func newGroqProvider(model, apiKey string, agentTools []tools.Tool, logger *zap.Logger) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY not configured for model %s", model)
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(groqBaseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Groq provider: %w", err)
	}
	return &langchainProvider{llm: llm, tools: agentTools, counter: &tiktokenCounter{}, logger: logger}, nil
}

func (p *langchainProvider) Converse(ctx context.Context, input string, history []models.Message) (string, error) {
	trimmed := windowHistory(history, historyTokenBudget, p.counter)
	if dropped := len(history) - len(trimmed); dropped > 0 {
		p.logger.Debug("trimmed conversation history",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(trimmed)))
	}

	previous := make([]llms.ChatMessage, 0, len(trimmed))
	for _, msg := range trimmed {
		switch msg.Role {
		case models.RoleUser:
			previous = append(previous, llms.HumanChatMessage{Content: msg.Content})
		case models.RoleAssistant:
			previous = append(previous, llms.AIChatMessage{Content: msg.Content})
		}
	}

	buf := memory.NewConversationBuffer(
		memory.WithChatHistory(memory.NewChatMessageHistory(
			memory.WithPreviousMessages(previous),
		)),
	)

	executor := agents.NewExecutor(
		agents.NewConversationalAgent(p.llm, p.tools),
		agents.WithMemory(buf),
		agents.WithMaxIterations(maxIterations),
		agents.WithParserErrorHandler(agents.NewParserErrorHandler(nil)),
	)

	ctx, cancel := context.WithTimeout(ctx, converseTimeout)
	defer cancel()

	output, err := chains.Run(ctx, executor, input)
	if err != nil {
		return "", fmt.Errorf("agent run failed: %w", err)
	}
	return output, nil
}
