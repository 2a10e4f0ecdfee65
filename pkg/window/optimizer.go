package window

import (
	"fmt"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// Optimizer trims a conversation history to fit a token budget before it
// reaches the model. Retention is greedy from the newest turn backwards,
// so the most recent exchanges always survive intact.
type Optimizer struct {
	encoder *tiktoken.Tiktoken
	budget  int
	log     logger.ILogger
}

func NewOptimizer(budget int, log logger.ILogger) (*Optimizer, error) {
	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("window: load encoding %s: %w", encodingName, err)
	}
	return &Optimizer{
		encoder: encoder,
		budget:  budget,
		log:     log,
	}, nil
}

// CountTokens returns the token count of one piece of text.
func (o *Optimizer) CountTokens(text string) int {
	return len(o.encoder.Encode(text, nil, nil))
}

// turnCost is the token weight of one turn: its content plus a small
// fixed overhead for the role framing.
func (o *Optimizer) turnCost(m llm.Message) int {
	const framingOverhead = 4
	return o.CountTokens(m.Content) + framingOverhead
}

// Optimize returns the history to send, preserving order and never
// splitting a turn. When turns are dropped, a single marker turn is
// prepended so the model knows the conversation did not start here.
func (o *Optimizer) Optimize(history []llm.Message) []llm.Message {
	if len(history) == 0 {
		return history
	}

	total := 0
	for _, m := range history {
		total += o.turnCost(m)
	}
	if total <= o.budget {
		return history
	}

	// Walk backwards keeping whole turns until the budget is spent.
	// Reserve a little room for the marker turn itself.
	const markerReserve = 32
	remaining := o.budget - markerReserve
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := o.turnCost(history[i])
		if cost > remaining {
			break
		}
		remaining -= cost
		cut = i
	}

	dropped := cut
	if dropped == 0 {
		return history
	}

	kept := make([]llm.Message, 0, len(history)-dropped+1)
	kept = append(kept, llm.Message{
		Role:    constant.ChatRoleSystem,
		Content: fmt.Sprintf("[Contexte tronqué : les %d premiers échanges de cette session ont été omis pour rester dans la fenêtre du modèle.]", dropped),
	})
	kept = append(kept, history[cut:]...)

	o.log.Debug("window", "history trimmed", map[string]interface{}{
		"totalTurns":   len(history),
		"droppedTurns": dropped,
		"budget":       o.budget,
	})

	return kept
}
