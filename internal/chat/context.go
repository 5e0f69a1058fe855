// ABOUTME: Context window builder producing a budget-bounded turn sequence
// ABOUTME: Tail-keep walk from the newest turn backward, system turn not privileged

package chat

import (
	"github.com/vaxassist/chatd/internal/engine"
	"github.com/vaxassist/chatd/internal/store"
)

// TurnOverhead is the fixed per-turn size charge added on top of content
// length when accumulating against the character budget.
const TurnOverhead = 20

// BuildWindow produces the ordered context sent to the engine: an optional
// system turn, a contiguous suffix of the conversation history, and the new
// user turn. Turns are accumulated newest-first until the running size
// (content length + TurnOverhead per turn) would exceed budget; the walk
// stops at the first turn that does not fit. The new user turn is scanned
// first, so it survives any budget that can hold it at all. The system turn
// is the logical oldest entry and is the first to be dropped under pressure.
func BuildWindow(history []*store.Message, newText, system string, budget int) []engine.Turn {
	candidates := make([]engine.Turn, 0, len(history)+2)

	if system != "" {
		candidates = append(candidates, engine.Turn{Role: engine.RoleSystem, Content: system})
	}
	for _, msg := range history {
		role := engine.RoleUser
		if msg.Sender == store.SenderBot {
			role = engine.RoleAssistant
		}
		candidates = append(candidates, engine.Turn{Role: role, Content: msg.Text})
	}
	candidates = append(candidates, engine.Turn{Role: engine.RoleUser, Content: newText})

	// Walk backward, keeping turns while they fit; stop at the first that
	// would push the total over budget.
	kept := 0
	running := 0
	for i := len(candidates) - 1; i >= 0; i-- {
		running += len(candidates[i].Content) + TurnOverhead
		if running > budget {
			break
		}
		kept++
	}

	return candidates[len(candidates)-kept:]
}
