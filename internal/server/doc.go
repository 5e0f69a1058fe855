// ABOUTME: Package documentation for the server package
// ABOUTME: Describes the HTTP surface and its SSE streaming endpoint

// Package server implements chatd's HTTP API: session-cookie auth,
// the SSE chat endpoint, conversation browsing, account self-service,
// report tickets, engine config administration, and public reference
// data.
//
// Routes use Go 1.22 method patterns on a plain ServeMux. Handlers
// translate domain sentinel errors into JSON error responses; the chat
// send handler switches the response to text/event-stream only after
// the relay has accepted the request, so validation and quota failures
// still arrive as ordinary JSON status codes.
package server
