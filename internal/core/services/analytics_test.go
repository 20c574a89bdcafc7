package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven/mocks"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

var ridershipFixture = []domain.StatsRecord{
	{Month: "January", TransportMode: "Metro", StationLine: "Red Metro Line", StationName: "Union", PassengerTrips: 1200},
	{Month: "January", TransportMode: "Metro", StationLine: "Green Metro Line", StationName: "Creek", PassengerTrips: 800},
	{Month: "February", TransportMode: "Metro", StationLine: "Red Metro Line", StationName: "Union", PassengerTrips: 1500},
	{Month: "January", TransportMode: "Tram", StationLine: "Tram Line", StationName: "Marina", PassengerTrips: 300},
	{Month: "January", TransportMode: "Metro", StationLine: "Red Metro Line", StationName: "Closed", PassengerTrips: 0},
}

func writeDataset(t *testing.T, records []domain.StatsRecord) string {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal dataset: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ridership.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func newTestAnalytics(t *testing.T, llm *mocks.MockLLMService) *analyticsService {
	t.Helper()
	services := runtime.NewServices()
	if llm != nil {
		services.SetLLMService(llm)
	}
	path := writeDataset(t, ridershipFixture)
	return NewAnalyticsService(path, services, nil).(*analyticsService)
}

func TestAnalyticsService_Ask(t *testing.T) {
	llm := mocks.NewMockLLMService("Metro stations recorded 3.5 thousand trips in total.")
	llm.JSONResponses = []string{
		`{"filters": [{"field": "transport_mode", "op": "eq", "value": "Metro"}], "aggregate": {"op": "sum", "field": "passenger_trips"}}`,
	}
	svc := newTestAnalytics(t, llm)

	question := "How many metro trips were there in total?"
	answer, err := svc.Ask(context.Background(), question)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != "Metro stations recorded 3.5 thousand trips in total." {
		t.Errorf("answer = %q", answer)
	}

	if len(llm.JSONCalls) != 1 || !strings.Contains(llm.JSONCalls[0], question) {
		t.Error("plan prompt missing the question")
	}
	if len(llm.CompleteCalls) != 1 {
		t.Fatalf("summary calls = %d, want 1", len(llm.CompleteCalls))
	}
}

func TestAnalyticsService_LoadsDatasetOnce(t *testing.T) {
	svc := newTestAnalytics(t, mocks.NewMockLLMService())

	records, err := svc.load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if len(records) != len(ridershipFixture) {
		t.Fatalf("records = %d, want %d", len(records), len(ridershipFixture))
	}

	// Dataset is cached; deleting the file does not affect later loads
	if err := os.Remove(svc.dataPath); err != nil {
		t.Fatalf("remove dataset: %v", err)
	}
	again, err := svc.load()
	if err != nil {
		t.Fatalf("load() after remove error = %v", err)
	}
	if len(again) != len(records) {
		t.Errorf("cached records = %d, want %d", len(again), len(records))
	}
}

func TestAnalyticsService_Ask_NoData(t *testing.T) {
	llm := mocks.NewMockLLMService("should never be called")
	llm.JSONResponses = []string{
		`{"filters": [{"field": "transport_mode", "op": "eq", "value": "Monorail"}]}`,
	}
	svc := newTestAnalytics(t, llm)

	answer, err := svc.Ask(context.Background(), "monorail ridership?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != noDataText {
		t.Errorf("answer = %q, want no-data text", answer)
	}
	if len(llm.CompleteCalls) != 0 {
		t.Errorf("summary calls = %d, want 0 when the plan matched nothing", len(llm.CompleteCalls))
	}
}

func TestAnalyticsService_Ask_InvalidPlan(t *testing.T) {
	tests := []struct {
		name string
		plan string
	}{
		{
			name: "unknown filter field",
			plan: `{"filters": [{"field": "ticket_price", "op": "eq", "value": "5"}]}`,
		},
		{
			name: "unknown key rejected",
			plan: `{"filters": [], "sql": "DROP TABLE riders"}`,
		},
		{
			name: "not json",
			plan: `SELECT * FROM riders`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := mocks.NewMockLLMService()
			llm.JSONResponses = []string{tt.plan}
			svc := newTestAnalytics(t, llm)

			if _, err := svc.Ask(context.Background(), "question"); !errors.Is(err, domain.ErrInvalidPlan) {
				t.Errorf("Ask() error = %v, want ErrInvalidPlan", err)
			}
		})
	}
}

func TestAnalyticsService_Ask_EmptyQuestion(t *testing.T) {
	svc := newTestAnalytics(t, mocks.NewMockLLMService())

	if _, err := svc.Ask(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Ask() error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyticsService_Ask_NoModel(t *testing.T) {
	svc := newTestAnalytics(t, nil)

	if _, err := svc.Ask(context.Background(), "question"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Ask() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestAnalyticsService_Ask_MissingDataset(t *testing.T) {
	services := runtime.NewServices()
	services.SetLLMService(mocks.NewMockLLMService())
	svc := NewAnalyticsService(filepath.Join(t.TempDir(), "absent.json"), services, nil)

	if _, err := svc.Ask(context.Background(), "question"); err == nil {
		t.Fatal("Ask() error = nil, want dataset read failure")
	}
}

func TestAnalyticsService_Ask_CorruptDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ridership.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	services := runtime.NewServices()
	services.SetLLMService(mocks.NewMockLLMService())
	svc := NewAnalyticsService(path, services, nil)

	if _, err := svc.Ask(context.Background(), "question"); !errors.Is(err, domain.ErrParse) {
		t.Errorf("Ask() error = %v, want ErrParse", err)
	}
}

func TestAnalyticsService_Ask_EmptySummaryFallsBack(t *testing.T) {
	llm := mocks.NewMockLLMService("   ")
	llm.JSONResponses = []string{
		`{"filters": [{"field": "month", "op": "eq", "value": "January"}], "aggregate": {"op": "count", "field": ""}}`,
	}
	svc := newTestAnalytics(t, llm)

	answer, err := svc.Ask(context.Background(), "january rides?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != noDataText {
		t.Errorf("answer = %q, want no-data text on empty summary", answer)
	}
}
