package driving

import "context"

// AnalyticsService answers natural-language questions over the ridership
// dataset using a constrained query plan selected by the model.
type AnalyticsService interface {
	Ask(ctx context.Context, question string) (string, error)
}
