package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/repository"
	repo "github.com/mamadbah2/farmchain/internal/repository/sheets"
)

const (
	dateLayout     = "2006-01-02"
	traceDataRange = "Trace!A:E"
)

// Service exports the trace log to Google Sheets and summarizes daily activity.
type Service struct {
	traces   repository.TraceLog
	sheet    repo.Repository
	location *time.Location
	logger   *zap.Logger
}

// NewService wires a new reporting service instance. sheet may be nil, in
// which case exports only produce the summary.
func NewService(traces repository.TraceLog, sheet repo.Repository, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{traces: traces, sheet: sheet, location: location, logger: logger}
}

// DailySummary describes the trace activity of one calendar day.
type DailySummary struct {
	Day     time.Time
	Entries int
	Batches int
	ByEvent map[string]int
}

// Message renders the summary for a chat channel.
func (d DailySummary) Message() string {
	day := d.Day.Format(dateLayout)
	if d.Entries == 0 {
		return fmt.Sprintf("Batch activity (%s): no lifecycle events recorded.", day)
	}

	events := make([]string, 0, len(d.ByEvent))
	for event := range d.ByEvent {
		events = append(events, event)
	}
	sort.Strings(events)

	var b strings.Builder
	fmt.Fprintf(&b, "Batch activity (%s): %d events across %d batches.", day, d.Entries, d.Batches)
	for _, event := range events {
		fmt.Fprintf(&b, "\n- %s: %d", event, d.ByEvent[event])
	}
	return b.String()
}

// ExportDay appends every trace entry of the day containing day to the Trace
// sheet and returns the day's summary.
func (s *Service) ExportDay(ctx context.Context, day time.Time) (DailySummary, error) {
	local := day.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	end := start.AddDate(0, 0, 1)

	traces, err := s.traces.FindTracesBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return DailySummary{}, fmt.Errorf("load traces for %s: %w", start.Format(dateLayout), err)
	}

	summary := DailySummary{Day: start, Entries: len(traces), ByEvent: map[string]int{}}
	seen := map[string]bool{}
	rows := make([][]interface{}, 0, len(traces))
	for _, t := range traces {
		if !seen[t.BatchID] {
			seen[t.BatchID] = true
			summary.Batches++
		}
		summary.ByEvent[eventName(t.Label)]++
		rows = append(rows, []interface{}{
			t.Timestamp.In(s.location).Format(time.RFC3339),
			t.BatchID,
			t.FarmerID,
			t.Label,
			t.ChangedBy,
		})
	}

	if s.sheet == nil {
		s.logger.Debug("sheet export disabled", zap.Int("entries", len(rows)))
		return summary, nil
	}
	if err := s.sheet.AppendRows(ctx, traceDataRange, rows); err != nil {
		return summary, fmt.Errorf("export traces: %w", err)
	}

	s.logger.Info("trace log exported",
		zap.String("day", start.Format(dateLayout)),
		zap.Int("entries", len(rows)))
	return summary, nil
}

// eventName strips free-text suffixes such as rejection reasons or merge
// targets from a trace label.
func eventName(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return fields[0]
}
