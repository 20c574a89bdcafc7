package services

import (
	"context"
	"strings"
	"testing"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven/mocks"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

func newTestComposer(llm *mocks.MockLLMService, contextChunks int) *composerService {
	services := runtime.NewServices()
	if llm != nil {
		services.SetLLMService(llm)
	}
	return NewComposer(services, contextChunks, nil).(*composerService)
}

func retrievedChunk(uniqueID, name, content string, distance float64) domain.RetrievedResult {
	return domain.RetrievedResult{
		Chunk: domain.Chunk{
			Content: content,
			Metadata: domain.Metadata{
				UniqueID: uniqueID,
				Name:     name,
				Category: domain.CategoryIDOS,
				Language: domain.LanguageEnglish,
			},
		},
		Distance: distance,
	}
}

func TestComposer_Answer(t *testing.T) {
	llm := mocks.NewMockLLMService("The renewal fee is 120 AED.")
	svc := newTestComposer(llm, 0)

	retrieved := []domain.RetrievedResult{
		retrievedChunk("svc-1", "Trade License Renewal", "renewal fee is 120 AED", 0.10),
		retrievedChunk("svc-2", "Parking Permits", "permits cost 50 AED", 0.30),
	}

	payload, err := svc.Answer(context.Background(), "how much is a renewal?", retrieved, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if payload.ResponseText != "The renewal fee is 120 AED." {
		t.Errorf("ResponseText = %q", payload.ResponseText)
	}
	if payload.Total != 2 {
		t.Errorf("Total = %d, want 2", payload.Total)
	}
	if payload.Data[0].UniqueID != "svc-1" || payload.Data[0].Score != 90 {
		t.Errorf("best source = %+v, want svc-1 with score 90", payload.Data[0])
	}
	if payload.TextClean != "HOW MUCH IS A RENEWAL" {
		t.Errorf("TextClean = %q", payload.TextClean)
	}
}

func TestComposer_Answer_GroundsTopChunksOnly(t *testing.T) {
	llm := mocks.NewMockLLMService("answer")
	svc := newTestComposer(llm, 2)

	retrieved := []domain.RetrievedResult{
		retrievedChunk("a", "A", "first chunk content", 0.1),
		retrievedChunk("b", "B", "second chunk content", 0.2),
		retrievedChunk("c", "C", "third chunk content", 0.3),
	}

	if _, err := svc.Answer(context.Background(), "question", retrieved, nil); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if len(llm.CompleteCalls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(llm.CompleteCalls))
	}
	system := llm.CompleteCalls[0]
	if !strings.Contains(system, "first chunk content") || !strings.Contains(system, "second chunk content") {
		t.Error("system prompt missing top-ranked chunk content")
	}
	if strings.Contains(system, "third chunk content") {
		t.Error("system prompt includes chunk beyond the context window")
	}
}

func TestComposer_Answer_SourceRanking(t *testing.T) {
	svc := newTestComposer(nil, 0)

	retrieved := []domain.RetrievedResult{
		retrievedChunk("svc-1", "Best", "chunk a", 0.05),
		retrievedChunk("", "Anonymous", "chunk b", 0.10),
		retrievedChunk("svc-1", "Best again", "chunk c", 0.20),
		retrievedChunk("svc-2", "Second", "chunk d", 0.40),
	}

	payload, err := svc.Answer(context.Background(), "question", retrieved, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if payload.Total != 2 {
		t.Fatalf("Total = %d, want 2 (duplicate and anonymous dropped)", payload.Total)
	}
	if payload.Data[0].UniqueID != "svc-1" || payload.Data[0].Title != "Best" {
		t.Errorf("first source = %+v, want best-ranked svc-1 occurrence", payload.Data[0])
	}
	if payload.Data[1].UniqueID != "svc-2" {
		t.Errorf("second source = %+v, want svc-2", payload.Data[1])
	}
}

func TestComposer_Answer_NoModel(t *testing.T) {
	svc := newTestComposer(nil, 0)

	payload, err := svc.Answer(context.Background(), "question", nil, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if payload.ResponseText != noAnswerText {
		t.Errorf("ResponseText = %q, want no-answer text", payload.ResponseText)
	}
}

func TestComposer_Answer_EmptyCompletion(t *testing.T) {
	llm := mocks.NewMockLLMService("   ")
	svc := newTestComposer(llm, 0)

	payload, err := svc.Answer(context.Background(), "question", nil, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if payload.ResponseText != noAnswerText {
		t.Errorf("ResponseText = %q, want no-answer text", payload.ResponseText)
	}
}

func TestComposer_Answer_DecodesStructuredPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "answer object",
			raw:  `{"answer": "The office opens at 8am."}`,
			want: "The office opens at 8am.",
		},
		{
			name: "chunk array",
			raw:  `[{"type": "text", "data": {"content": "Visit the service center."}}]`,
			want: "Visit the service center.",
		},
		{
			name: "plain text",
			raw:  "Just a plain sentence.",
			want: "Just a plain sentence.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestComposer(mocks.NewMockLLMService(tt.raw), 0)
			payload, err := svc.Answer(context.Background(), "question", nil, nil)
			if err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
			if payload.ResponseText != tt.want {
				t.Errorf("ResponseText = %q, want %q", payload.ResponseText, tt.want)
			}
		})
	}
}

func TestComposer_Answer_StripsURLs(t *testing.T) {
	llm := mocks.NewMockLLMService("Apply online at https://services.example.gov/renew and pay the fee.")
	svc := newTestComposer(llm, 0)

	payload, err := svc.Answer(context.Background(), "where do I apply?", nil, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if strings.Contains(payload.ResponseText, "http") {
		t.Errorf("ResponseText still contains a URL: %q", payload.ResponseText)
	}
	if payload.ResponseText != "Apply online at and pay the fee." {
		t.Errorf("ResponseText = %q", payload.ResponseText)
	}
}

func TestComposer_Answer_TranslatesMismatchedLanguage(t *testing.T) {
	llm := mocks.NewMockLLMService("The fee is 120 AED.", "الرسوم 120 درهم.")
	svc := newTestComposer(llm, 0)

	payload, err := svc.Answer(context.Background(), "كم الرسوم؟", nil, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if payload.ResponseText != "الرسوم 120 درهم." {
		t.Errorf("ResponseText = %q, want translated answer", payload.ResponseText)
	}
	if len(llm.CompleteCalls) != 2 {
		t.Errorf("Complete calls = %d, want 2 (answer then translation)", len(llm.CompleteCalls))
	}
	// Translation request carries no grounding system prompt
	if llm.CompleteCalls[1] != "" {
		t.Errorf("translation system prompt = %q, want empty", llm.CompleteCalls[1])
	}
}

func TestComposer_Answer_KeepsOriginalOnTranslationFailure(t *testing.T) {
	llm := mocks.NewMockLLMService("The fee is 120 AED.", "")
	svc := newTestComposer(llm, 0)

	payload, err := svc.Answer(context.Background(), "كم الرسوم؟", nil, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if payload.ResponseText != "The fee is 120 AED." {
		t.Errorf("ResponseText = %q, want original answer preserved", payload.ResponseText)
	}
}

func TestComposer_Answer_NoTranslationForMatchingLanguages(t *testing.T) {
	llm := mocks.NewMockLLMService("الرسوم 120 درهم.")
	svc := newTestComposer(llm, 0)

	if _, err := svc.Answer(context.Background(), "كم الرسوم؟", nil, nil); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(llm.CompleteCalls) != 1 {
		t.Errorf("Complete calls = %d, want 1 (answer already Arabic)", len(llm.CompleteCalls))
	}
}

func TestComposer_Answer_FallbackSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		question string
		answer   string
		want     string
	}{
		{
			name:     "english marker",
			question: "what about space travel?",
			answer:   "I don't have any information about that topic.",
			want:     fallbackEnglish,
		},
		{
			name:     "arabic marker",
			question: "ماذا عن السفر للفضاء؟",
			answer:   "عذراً، لا توجد معلومات حول هذا الموضوع.",
			want:     fallbackArabic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestComposer(mocks.NewMockLLMService(tt.answer), 0)
			payload, err := svc.Answer(context.Background(), tt.question, nil, nil)
			if err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
			if payload.ResponseText != tt.want {
				t.Errorf("ResponseText = %q, want localized fallback %q", payload.ResponseText, tt.want)
			}
		})
	}
}

func TestComposer_Answer_ModelError(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.Err = context.DeadlineExceeded
	svc := newTestComposer(llm, 0)

	if _, err := svc.Answer(context.Background(), "question", nil, nil); err == nil {
		t.Fatal("Answer() error = nil, want model error surfaced")
	}
}

func TestStripURLs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"no links here", "no links here"},
		{"see https://a.example/x?q=1 now", "see now"},
		{"HTTP://UPPER.example and ftp://files.example/f", "and"},
		{"steps:\n1. Apply at https://a.example\n2. Pay the fee", "steps:\n1. Apply at\n2. Pay the fee"},
		{"first paragraph\n\nsecond paragraph", "first paragraph\n\nsecond paragraph"},
	}
	for _, tt := range tests {
		if got := stripURLs(tt.in); got != tt.want {
			t.Errorf("stripURLs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComposer_Answer_KeepsLineBreaks(t *testing.T) {
	llm := mocks.NewMockLLMService("To renew:\n1. Visit the center at https://renew.example\n2. Bring your ID")
	svc := newTestComposer(llm, 0)

	payload, err := svc.Answer(context.Background(), "how do I renew?", nil, nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	want := "To renew:\n1. Visit the center at\n2. Bring your ID"
	if payload.ResponseText != want {
		t.Errorf("ResponseText = %q, want list formatting preserved", payload.ResponseText)
	}
}
