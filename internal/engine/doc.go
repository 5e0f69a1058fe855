// Package engine abstracts the completion backend for chatd.
//
// The Client interface streams chat completions as a sequence of delta
// events terminated by a done or error event. OpenAIClient implements it
// against the OpenAI API or any compatible endpoint.
//
// Selector picks the model for each request: the active engine config when
// its model answers a liveness probe, the configured default otherwise.
// Selection never fails; the default model is always available as a name
// even if the upstream later rejects it.
package engine
