package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

// Ensure analyticsService implements AnalyticsService
var _ driving.AnalyticsService = (*analyticsService)(nil)

// noDataText is returned when the plan matched nothing.
const noDataText = "No Data Available for your query"

const planPrompt = `Select a query plan, as a single JSON object, that answers the question below over a ridership dataset.

Question: %QUESTION%

The dataset schema is:
  month: string
  transport_mode: string (e.g. "Metro", "Tram")
  station_line: string (e.g. "Red Metro Line", "Green Metro Line")
  station_name: string
  passenger_trips: number

The JSON object must follow exactly this schema, with no other keys:
{
  "filters": [{"field": "<schema field>", "op": "eq|neq|contains|gt|lt", "value": "<string>"}],
  "aggregate": {"op": "sum|count|avg|max|min", "field": "passenger_trips"},
  "group_by": "<schema field or empty>",
  "limit": <number or 0>
}

Omit "aggregate" to return matching rows. Output only the JSON object.`

const summaryPrompt = `Generate a short and to-the-point summary answering the question from the data below. If the data is empty, reply exactly "No Data Available for your query".

Question: %QUESTION%

Data: %DATA%`

// analyticsService answers natural-language questions over the ridership
// dataset. The model picks a constrained query plan via structured
// output; the plan is validated and executed by fixed primitives. The
// model never authors executable code.
type analyticsService struct {
	dataPath string
	services *runtime.Services
	logger   *slog.Logger

	loadOnce sync.Once
	records  []domain.StatsRecord
	loadErr  error
}

// NewAnalyticsService creates a new AnalyticsService reading the
// ridership dataset from dataPath.
func NewAnalyticsService(dataPath string, services *runtime.Services, logger *slog.Logger) driving.AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &analyticsService{
		dataPath: dataPath,
		services: services,
		logger:   logger,
	}
}

// Ask plans, executes, and summarizes one question.
func (s *analyticsService) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	llm := s.services.LLMService()
	if llm == nil {
		return "", fmt.Errorf("%w: llm service not configured", domain.ErrServiceUnavailable)
	}

	records, err := s.load()
	if err != nil {
		return "", err
	}

	plan, err := s.selectPlan(ctx, question)
	if err != nil {
		return "", err
	}

	result, err := domain.ExecutePlan(records, *plan)
	if err != nil {
		return "", err
	}
	if result.Empty() {
		return noDataText, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	prompt := strings.Replace(summaryPrompt, "%QUESTION%", question, 1)
	prompt = strings.Replace(prompt, "%DATA%", string(data), 1)
	summary, err := llm.Complete(ctx, "", []domain.Message{{Role: domain.RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(summary) == "" {
		return noDataText, nil
	}
	return strings.TrimSpace(summary), nil
}

// selectPlan asks the model for a structured query plan and validates it
// against the DSL whitelist. Unknown keys are rejected outright.
func (s *analyticsService) selectPlan(ctx context.Context, question string) (*domain.QueryPlan, error) {
	llm := s.services.LLMService()

	raw, err := llm.CompleteJSON(ctx, strings.Replace(planPrompt, "%QUESTION%", question, 1))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	var plan domain.QueryPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlan, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("selected query plan",
		"filters", len(plan.Filters),
		"group_by", plan.GroupBy,
	)
	return &plan, nil
}

// load reads the dataset once per process.
func (s *analyticsService) load() ([]domain.StatsRecord, error) {
	s.loadOnce.Do(func() {
		data, err := os.ReadFile(s.dataPath)
		if err != nil {
			s.loadErr = fmt.Errorf("read ridership data: %w", err)
			return
		}
		if err := json.Unmarshal(data, &s.records); err != nil {
			s.loadErr = fmt.Errorf("%w: ridership data: %v", domain.ErrParse, err)
		}
	})
	return s.records, s.loadErr
}
