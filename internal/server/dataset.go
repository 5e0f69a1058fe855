// ABOUTME: Fine-tuning dataset export: turns Q/A transcripts into JSONL
// ABOUTME: Admins paste marked-up text and download chat-format training records

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

var (
	questionMarker = regexp.MustCompile(`(?i)^\s*Q\s*[:\-]\s*(.*)$`)
	answerMarker   = regexp.MustCompile(`(?i)^\s*A\s*[:\-]\s*(.*)$`)
)

// qaPair is one question/answer exchange extracted from marked-up text.
type qaPair struct {
	question string
	answer   string
}

// datasetTurn mirrors the chat-format message shape fine-tuning APIs expect.
type datasetTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type datasetRecord struct {
	Messages []datasetTurn `json:"messages"`
}

// parseQAPairs extracts question/answer pairs from text using "Q:" and "A:"
// line markers (dash variants and any case accepted). Lines between markers
// belong to the block above them, so both sides may span multiple lines. A
// pair is kept only when both sides are non-empty; an answer marker before
// any question is ignored.
func parseQAPairs(text string) []qaPair {
	var pairs []qaPair
	var question, answer []string
	mode := ""

	flush := func() {
		q := strings.TrimSpace(strings.Join(question, "\n"))
		a := strings.TrimSpace(strings.Join(answer, "\n"))
		if q != "" && a != "" {
			pairs = append(pairs, qaPair{question: q, answer: a})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if m := questionMarker.FindStringSubmatch(line); m != nil {
			if mode != "" {
				flush()
			}
			question, answer = []string{m[1]}, nil
			mode = "q"
			continue
		}
		if m := answerMarker.FindStringSubmatch(line); m != nil {
			if mode == "" {
				continue
			}
			answer = append(answer, m[1])
			mode = "a"
			continue
		}
		switch mode {
		case "q":
			question = append(question, line)
		case "a":
			answer = append(answer, line)
		}
	}
	if mode != "" {
		flush()
	}
	return pairs
}

// handleExportDataset handles POST /api/admin/dataset/jsonl (admin). The
// response is one JSON chat record per line, served as a downloadable file.
// An omitted or empty system prompt falls back to the configured one.
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		System string `json:"system"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.sendJSONError(w, http.StatusBadRequest, "text with Q/A pairs is required")
		return
	}

	pairs := parseQAPairs(req.Text)
	if len(pairs) == 0 {
		s.sendJSONError(w, http.StatusBadRequest, "no Q/A pairs found in input")
		return
	}

	system := strings.TrimSpace(req.System)
	if system == "" {
		system = s.cfg.Engine.SystemPrompt
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, pair := range pairs {
		record := datasetRecord{Messages: []datasetTurn{
			{Role: "system", Content: system},
			{Role: "user", Content: pair.question},
			{Role: "assistant", Content: pair.answer},
		}}
		if err := enc.Encode(record); err != nil {
			s.logger.Error("failed to encode dataset record", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	s.logger.Info("dataset exported", "pairs", len(pairs))
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="qa_dataset.jsonl"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
