// Package chat implements the conversation streaming session core.
//
// Three collaborators make up one turn:
//
//   - BuildWindow trims persisted history into a character-budgeted context
//     window, keeping the most recent turns and dropping from the front.
//   - QuotaGate admits or rejects the turn against the user's daily limit,
//     lazily resetting the counter on the first request of each day.
//   - Relay orchestrates the turn: it records the user message before any
//     engine call, streams the answer back as delta events, and persists
//     the completed answer plus the quota charge before the terminal done
//     event.
//
// Failures before the stream opens surface as ordinary errors mapped to
// status codes by the server package. Failures after the stream opens are
// delivered in-band as error events; the partial answer is discarded.
package chat
