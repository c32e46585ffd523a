package agentloop

import (
	"unicode/utf8"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

const (
	toolCallOverheadTokens   = 20
	toolResultOverheadTokens = 10
	imageOverheadTokens      = 1000
	fixedBudgetReserve       = 200
	inputBudgetFraction      = 0.75
	retainTailMessages       = 4
)

// estimateTokens applies the coarse ceil(chars/4) heuristic to every
// text-bearing part of a message, plus fixed per-part overhead for tool
// calls, tool results, and images (spec §4.1, §9: deliberately
// conservative in place of a real tokenizer).
func estimateTokens(m message.Message) int {
	total := 0
	for _, p := range m.Parts {
		switch p.Kind {
		case message.PartText, message.PartReasoning:
			total += ceilDiv(utf8.RuneCountInString(p.Text), 4)
		case message.PartToolCall:
			total += ceilDiv(utf8.RuneCountInString(p.ToolCallInput), 4) + toolCallOverheadTokens
		case message.PartToolResult:
			total += ceilDiv(utf8.RuneCountInString(p.ToolResultContent), 4) + toolResultOverheadTokens
		case message.PartImage, message.PartImageURL:
			total += imageOverheadTokens
		}
	}
	return total
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// InputBudget returns the token budget available for message history
// given a model's context window and the system prompt's size.
func InputBudget(contextWindow int, systemPromptTokens int) int {
	budget := contextWindow - systemPromptTokens - fixedBudgetReserve
	if budget < 0 {
		budget = 0
	}
	return int(float64(budget) * inputBudgetFraction)
}

// Trim retains the first user message, the last retainTailMessages
// messages, and as many intermediate messages (oldest-first discarded)
// as fit the budget, without ever orphaning a ToolCall from its
// matching ToolResult (spec §4.1, §8).
func Trim(messages []message.Message, budget int) []message.Message {
	total := 0
	for _, m := range messages {
		total += estimateTokens(m)
	}
	if total <= budget || len(messages) <= retainTailMessages+1 {
		return messages
	}

	firstUserIdx := -1
	for i, m := range messages {
		if m.Role == message.RoleUser {
			firstUserIdx = i
			break
		}
	}

	tailStart := len(messages) - retainTailMessages
	if tailStart < 0 {
		tailStart = 0
	}

	kept := make(map[int]bool, len(messages))
	if firstUserIdx >= 0 {
		kept[firstUserIdx] = true
	}
	for i := tailStart; i < len(messages); i++ {
		kept[i] = true
	}

	used := 0
	for i := range messages {
		if kept[i] {
			used += estimateTokens(messages[i])
		}
	}

	// Fill intermediate slots newest-first (so the oldest are the ones
	// discarded when the budget runs out).
	for i := tailStart - 1; i > firstUserIdx; i-- {
		if kept[i] {
			continue
		}
		cost := estimateTokens(messages[i])
		if used+cost > budget {
			continue
		}
		kept[i] = true
		used += cost
	}

	extendForOrphans(messages, kept)

	out := make([]message.Message, 0, len(kept))
	for i, m := range messages {
		if kept[i] {
			out = append(out, m)
		}
	}
	return out
}

// extendForOrphans grows kept so that every retained ToolCall part has
// its corresponding tool-role ToolResult message retained too, extending
// toward the tail (the pairing is always call-then-result), and every
// retained ToolResult has the message carrying its ToolCall retained.
func extendForOrphans(messages []message.Message, kept map[int]bool) {
	for i, m := range messages {
		if !kept[i] {
			continue
		}
		for _, p := range m.Parts {
			switch p.Kind {
			case message.PartToolCall:
				if j := findToolResult(messages, i+1, p.ToolCallID); j >= 0 {
					kept[j] = true
				}
			case message.PartToolResult:
				for j := i - 1; j >= 0; j-- {
					for _, q := range messages[j].Parts {
						if q.Kind == message.PartToolCall && q.ToolCallID == p.ToolCallID {
							kept[j] = true
						}
					}
				}
			}
		}
	}
}

func findToolResult(messages []message.Message, from int, toolCallID string) int {
	for i := from; i < len(messages); i++ {
		if messages[i].Role != message.RoleTool {
			continue
		}
		for _, p := range messages[i].Parts {
			if p.Kind == message.PartToolResult && p.ToolCallID == toolCallID {
				return i
			}
		}
	}
	return -1
}
