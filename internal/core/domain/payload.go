package domain

import (
	"encoding/json"
	"strings"
)

// PayloadKind identifies which known model response shape matched.
type PayloadKind int

const (
	// PayloadRaw means no known shape matched; the raw text is used as-is.
	PayloadRaw PayloadKind = iota
	// PayloadChunkArray is an array of typed chunks: [{"type":...,"data":{"content":...}}]
	PayloadChunkArray
	// PayloadChunkObject is a single typed object: {"type":...,"data":{"content":...}}
	PayloadChunkObject
	// PayloadAnswer is an {"answer": "..."} object
	PayloadAnswer
	// PayloadMessage is a {"message":...,"data":{"content":...}} wrapper
	PayloadMessage
)

// ModelPayload is the decoded form of a model response. Different model
// integrations wrap their text differently; decoding normalizes them all
// to a single plain-text answer.
type ModelPayload struct {
	Kind PayloadKind
	text string
}

// Text returns the extracted plain-text answer.
func (p ModelPayload) Text() string {
	return p.text
}

type typedChunk struct {
	Type string `json:"type"`
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

type answerObject struct {
	Answer string `json:"answer"`
}

// DecodeModelPayload normalizes a raw model response into plain text.
// Known shapes are attempted in priority order; the first that both
// matches its marker and parses wins. Anything else is treated as raw text.
func DecodeModelPayload(raw string) ModelPayload {
	trimmed := strings.TrimSpace(raw)

	switch {
	case strings.Contains(trimmed, `[{"type"`):
		var chunks []typedChunk
		if err := json.Unmarshal([]byte(trimmed), &chunks); err == nil && len(chunks) > 0 {
			return ModelPayload{Kind: PayloadChunkArray, text: chunks[0].Data.Content}
		}
	case strings.Contains(trimmed, `{"type"`):
		var chunk typedChunk
		if err := json.Unmarshal([]byte(trimmed), &chunk); err == nil {
			return ModelPayload{Kind: PayloadChunkObject, text: chunk.Data.Content}
		}
	case strings.Contains(trimmed, `{"answer"`):
		var obj answerObject
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return ModelPayload{Kind: PayloadAnswer, text: obj.Answer}
		}
	case strings.Contains(trimmed, `{"message"`):
		var chunk typedChunk
		if err := json.Unmarshal([]byte(trimmed), &chunk); err == nil && chunk.Data.Content != "" {
			return ModelPayload{Kind: PayloadMessage, text: chunk.Data.Content}
		}
	}

	return ModelPayload{Kind: PayloadRaw, text: trimmed}
}
