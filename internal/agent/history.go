package agent

import (
	"sync"

	"github.com/museworks/muse/internal/models"
	"github.com/pkoukk/tiktoken-go"
)

// historyTokenBudget caps how much prior conversation is sent to a provider.
// Oldest turns are dropped first; the newest turn always survives.
const historyTokenBudget = 4096

// tokenCounter estimates how many tokens a piece of text costs.
type tokenCounter interface {
	Count(text string) int
}

// tiktokenCounter counts with the cl100k_base encoding. The encoding tables
// are fetched lazily on first use; if that fails we fall back to a
// bytes-per-token heuristic rather than refusing to chat.
type tiktokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		// Rough average of four bytes per token for English text.
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// windowHistory returns the suffix of msgs that fits within budget tokens,
// preserving order. A single oversized message still gets through so the
// provider sees at least the latest turn.
func windowHistory(msgs []models.Message, budget int, counter tokenCounter) []models.Message {
	if len(msgs) == 0 {
		return msgs
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := counter.Count(msgs[i].Content)
		if total+cost > budget && start < len(msgs) {
			break
		}
		total += cost
		start = i
	}
	return msgs[start:]
}
