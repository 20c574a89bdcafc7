package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

// Ensure composerService implements Composer
var _ driving.Composer = (*composerService)(nil)

// DefaultContextChunks is how many retrieved chunks ground the prompt.
const DefaultContextChunks = 3

const groundingPrompt = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't have any information about that, " +
	"don't try to make up an answer. Make sure the answer is short and to the point. " +
	"If the question is a greeting, reply with a greeting. " +
	"Answer only with the same language as the question.\n\n"

const translatePrompt = "Translate text from English to Arabic. Text: %TEXT%. " +
	"Output only the translation without any other text."

// noAnswerText is the terminal response when the model yields no content.
const noAnswerText = "Sorry, I don't have an answer for that."

// Localized fallback shown when the model signals it found nothing:
// the user is directed to the listed sources instead.
const (
	fallbackEnglish = "I couldn't find details about that. Please browse the related services listed below."
	fallbackArabic  = "لم أجد تفاصيل حول ذلك، يرجى تصفح الخدمات ذات الصلة المدرجة أدناه."
)

// notAvailableMarkers signal that the model had no grounded answer,
// in either supported language.
var notAvailableMarkers = []string{
	"don't have any information",
	"do not have any information",
	"i don't understand",
	"no data available",
	"لا أملك معلومات",
	"لا تتوفر معلومات",
	"لا توجد معلومات",
}

// urlPattern also eats the spaces before a URL so removal does not
// leave double gaps mid-sentence.
var urlPattern = regexp.MustCompile(`(?i)[ \t]*\b(?:https?|ftp)://\S+`)

// composerService builds a grounded prompt, invokes the model, and
// post-processes the answer: payload decoding, URL stripping, language
// mismatch translation, and fallback substitution.
type composerService struct {
	services      *runtime.Services
	contextChunks int
	logger        *slog.Logger
}

// NewComposer creates a new Composer grounding answers on the top
// contextChunks retrieved chunks (default 3).
func NewComposer(services *runtime.Services, contextChunks int, logger *slog.Logger) driving.Composer {
	if contextChunks <= 0 {
		contextChunks = DefaultContextChunks
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &composerService{
		services:      services,
		contextChunks: contextChunks,
		logger:        logger,
	}
}

// Answer resolves the final response text and ranked source list.
func (s *composerService) Answer(
	ctx context.Context,
	question string,
	retrieved []domain.RetrievedResult,
	history []domain.Message,
) (*domain.AnswerPayload, error) {
	payload := &domain.AnswerPayload{
		Data:      rankSources(retrieved),
		TextClean: domain.CleanText(question),
	}
	payload.Total = len(payload.Data)

	llm := s.services.LLMService()
	if llm == nil {
		payload.ResponseText = noAnswerText
		return payload, nil
	}

	system := groundingPrompt + s.buildContext(retrieved)
	messages := append(append([]domain.Message{}, history...), domain.Message{
		Role:    domain.RoleUser,
		Content: question,
	})

	raw, err := llm.Complete(ctx, system, messages)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		payload.ResponseText = noAnswerText
		return payload, nil
	}

	text := domain.DecodeModelPayload(raw).Text()
	if strings.TrimSpace(text) == "" {
		// None of the known shapes carried content
		payload.ResponseText = noAnswerText
		return payload, nil
	}

	text = stripURLs(text)
	text = s.translateIfMismatched(ctx, question, text)
	text = substituteFallback(question, text)

	payload.ResponseText = text
	return payload, nil
}

// buildContext joins the top-N retrieved chunk contents.
func (s *composerService) buildContext(retrieved []domain.RetrievedResult) string {
	n := s.contextChunks
	if n > len(retrieved) {
		n = len(retrieved)
	}
	parts := make([]string, 0, n)
	for _, result := range retrieved[:n] {
		parts = append(parts, result.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

// translateIfMismatched asks the model to translate the answer to Arabic
// when the question is Arabic but the generated answer is not. On
// translation failure the untranslated answer is kept.
func (s *composerService) translateIfMismatched(ctx context.Context, question, answer string) string {
	if !domain.IsArabic(question) || domain.IsArabic(answer) {
		return answer
	}

	llm := s.services.LLMService()
	if llm == nil {
		return answer
	}

	prompt := strings.Replace(translatePrompt, "%TEXT%", answer, 1)
	translated, err := llm.Complete(ctx, "", []domain.Message{{Role: domain.RoleUser, Content: prompt}})
	if err != nil || strings.TrimSpace(translated) == "" {
		s.logger.Warn("translation failed, keeping original answer", "error", err)
		return answer
	}
	return strings.TrimSpace(translated)
}

// substituteFallback overrides the whole answer with the localized
// fallback sentence when a "not available" marker is present.
func substituteFallback(question, answer string) string {
	lowered := strings.ToLower(answer)
	for _, marker := range notAvailableMarkers {
		if strings.Contains(lowered, marker) {
			if domain.IsArabic(question) {
				return fallbackArabic
			}
			return fallbackEnglish
		}
	}
	return answer
}

// stripURLs removes URL-like substrings from the answer, tidying
// whitespace per line so list and paragraph breaks survive.
func stripURLs(text string) string {
	cleaned := urlPattern.ReplaceAllString(text, "")
	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// rankSources maps retrieved results to the ranked source list: entries
// without a unique ID are dropped, then the first (best) occurrence per
// unique ID is kept.
func rankSources(retrieved []domain.RetrievedResult) []domain.Source {
	sources := make([]domain.Source, 0, len(retrieved))
	for _, result := range retrieved {
		sources = append(sources, domain.Source{
			UniqueID: result.Chunk.Metadata.UniqueID,
			Title:    result.Chunk.Metadata.Name,
			Level:    0,
			Score:    result.Score(),
		})
	}
	return domain.DedupeSources(sources)
}
