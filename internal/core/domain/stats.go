package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// StatsRecord is one row of the ridership dataset.
type StatsRecord struct {
	Month          string  `json:"month"`
	TransportMode  string  `json:"transport_mode"`
	StationLine    string  `json:"station_line"`
	StationName    string  `json:"station_name"`
	PassengerTrips float64 `json:"passenger_trips"`
}

// FilterOp is a comparison operator in a query plan filter.
type FilterOp string

const (
	OpEquals      FilterOp = "eq"
	OpNotEquals   FilterOp = "neq"
	OpContains    FilterOp = "contains"
	OpGreaterThan FilterOp = "gt"
	OpLessThan    FilterOp = "lt"
)

// AggregateOp reduces a set of matched rows to a single number.
type AggregateOp string

const (
	AggSum   AggregateOp = "sum"
	AggCount AggregateOp = "count"
	AggAvg   AggregateOp = "avg"
	AggMax   AggregateOp = "max"
	AggMin   AggregateOp = "min"
)

// PlanFilter is one conjunct of a query plan's filter clause.
type PlanFilter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value"`
}

// Aggregate describes the reduction to apply to matched rows.
type Aggregate struct {
	Op    AggregateOp `json:"op"`
	Field string      `json:"field"`
}

// QueryPlan is the constrained query DSL the model selects from via
// structured output. Plans are validated against a fixed field and
// operator whitelist before execution; model-authored code is never run.
type QueryPlan struct {
	Filters   []PlanFilter `json:"filters"`
	Aggregate *Aggregate   `json:"aggregate,omitempty"`
	GroupBy   string       `json:"group_by,omitempty"`
	Limit     int          `json:"limit,omitempty"`
}

// StatsResult is the outcome of executing a query plan.
type StatsResult struct {
	Rows   []StatsRecord      `json:"rows,omitempty"`
	Groups map[string]float64 `json:"groups,omitempty"`
	Value  *float64           `json:"value,omitempty"`
}

// Empty reports whether the plan matched no data at all.
func (r StatsResult) Empty() bool {
	return len(r.Rows) == 0 && len(r.Groups) == 0 && r.Value == nil
}

var statsFields = map[string]bool{
	"month":           true,
	"transport_mode":  true,
	"station_line":    true,
	"station_name":    true,
	"passenger_trips": true,
}

var filterOps = map[FilterOp]bool{
	OpEquals: true, OpNotEquals: true, OpContains: true,
	OpGreaterThan: true, OpLessThan: true,
}

var aggregateOps = map[AggregateOp]bool{
	AggSum: true, AggCount: true, AggAvg: true, AggMax: true, AggMin: true,
}

// Validate checks the plan against the field and operator whitelist.
func (p *QueryPlan) Validate() error {
	for _, f := range p.Filters {
		if !statsFields[f.Field] {
			return fmt.Errorf("%w: unknown filter field %q", ErrInvalidPlan, f.Field)
		}
		if !filterOps[f.Op] {
			return fmt.Errorf("%w: unknown filter op %q", ErrInvalidPlan, f.Op)
		}
	}
	if p.Aggregate != nil {
		if !aggregateOps[p.Aggregate.Op] {
			return fmt.Errorf("%w: unknown aggregate op %q", ErrInvalidPlan, p.Aggregate.Op)
		}
		if p.Aggregate.Op != AggCount && p.Aggregate.Field != "passenger_trips" {
			return fmt.Errorf("%w: aggregate field %q is not numeric", ErrInvalidPlan, p.Aggregate.Field)
		}
	}
	if p.GroupBy != "" && !statsFields[p.GroupBy] {
		return fmt.Errorf("%w: unknown group_by field %q", ErrInvalidPlan, p.GroupBy)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidPlan)
	}
	return nil
}

// ExecutePlan runs a validated plan over the dataset. Rows with
// non-positive passenger trips are ignored, matching the source data's
// convention for placeholder rows.
func ExecutePlan(records []StatsRecord, plan QueryPlan) (StatsResult, error) {
	if err := plan.Validate(); err != nil {
		return StatsResult{}, err
	}

	var matched []StatsRecord
	for _, rec := range records {
		if rec.PassengerTrips <= 0 {
			continue
		}
		if matchesAll(rec, plan.Filters) {
			matched = append(matched, rec)
		}
	}

	if plan.GroupBy != "" {
		// Without an explicit aggregate, grouping yields row counts
		agg := Aggregate{Op: AggCount}
		if plan.Aggregate != nil {
			agg = *plan.Aggregate
		}
		byKey := make(map[string][]StatsRecord)
		for _, rec := range matched {
			key := fieldString(rec, plan.GroupBy)
			byKey[key] = append(byKey[key], rec)
		}
		groups := make(map[string]float64, len(byKey))
		for key, recs := range byKey {
			groups[key] = reduce(recs, agg)
		}
		return StatsResult{Groups: groups}, nil
	}

	if plan.Aggregate != nil {
		value := reduce(matched, *plan.Aggregate)
		return StatsResult{Value: &value}, nil
	}

	if plan.Limit > 0 && len(matched) > plan.Limit {
		matched = matched[:plan.Limit]
	}
	return StatsResult{Rows: matched}, nil
}

func matchesAll(rec StatsRecord, filters []PlanFilter) bool {
	for _, f := range filters {
		if !matches(rec, f) {
			return false
		}
	}
	return true
}

func matches(rec StatsRecord, f PlanFilter) bool {
	if f.Field == "passenger_trips" {
		threshold, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return false
		}
		switch f.Op {
		case OpEquals:
			return rec.PassengerTrips == threshold
		case OpNotEquals:
			return rec.PassengerTrips != threshold
		case OpGreaterThan:
			return rec.PassengerTrips > threshold
		case OpLessThan:
			return rec.PassengerTrips < threshold
		default:
			return false
		}
	}

	got := strings.ToLower(fieldString(rec, f.Field))
	want := strings.ToLower(f.Value)
	switch f.Op {
	case OpEquals:
		return got == want
	case OpNotEquals:
		return got != want
	case OpContains:
		return strings.Contains(got, want)
	default:
		return false
	}
}

func fieldString(rec StatsRecord, field string) string {
	switch field {
	case "month":
		return rec.Month
	case "transport_mode":
		return rec.TransportMode
	case "station_line":
		return rec.StationLine
	case "station_name":
		return rec.StationName
	case "passenger_trips":
		return strconv.FormatFloat(rec.PassengerTrips, 'f', -1, 64)
	}
	return ""
}

func reduce(records []StatsRecord, agg Aggregate) float64 {
	if agg.Op == AggCount {
		return float64(len(records))
	}
	if len(records) == 0 {
		return 0
	}
	var sum, max, min float64
	max = records[0].PassengerTrips
	min = records[0].PassengerTrips
	for _, rec := range records {
		sum += rec.PassengerTrips
		if rec.PassengerTrips > max {
			max = rec.PassengerTrips
		}
		if rec.PassengerTrips < min {
			min = rec.PassengerTrips
		}
	}
	switch agg.Op {
	case AggSum:
		return sum
	case AggAvg:
		return sum / float64(len(records))
	case AggMax:
		return max
	case AggMin:
		return min
	}
	return 0
}
