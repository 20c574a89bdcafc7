package domain

import "strings"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Source is one ranked source reference in an answer payload.
type Source struct {
	UniqueID string `json:"unique_id"`
	Title    string `json:"title"`
	Level    int    `json:"level"`
	Score    int    `json:"score"`
}

// AnswerPayload is the API-boundary response for a grounded query.
type AnswerPayload struct {
	ResponseText string   `json:"response_text"`
	Data         []Source `json:"data"`
	Total        int      `json:"total"`
	TextClean    string   `json:"text_clean"`
}

// DedupeSources drops entries without a unique ID and keeps only the first
// (best-ranked) occurrence per unique ID, preserving rank order.
func DedupeSources(sources []Source) []Source {
	seen := make(map[string]bool, len(sources))
	result := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src.UniqueID == "" || seen[src.UniqueID] {
			continue
		}
		seen[src.UniqueID] = true
		result = append(result, src)
	}
	return result
}

// IsArabic reports whether the text contains characters in the Arabic
// Unicode range.
func IsArabic(text string) bool {
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
	}
	return false
}

// CleanText normalizes a question for logging: punctuation stripped,
// whitespace collapsed, upper-cased. Not semantically load-bearing.
func CleanText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		case r > 127:
			// Keep non-ASCII letters (Arabic text survives cleaning)
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(strings.Join(strings.Fields(b.String()), " "))
}
