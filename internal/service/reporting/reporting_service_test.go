package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository/memory"
)

type fakeSheet struct {
	ranges []string
	rows   [][]interface{}
	err    error
}

func (f *fakeSheet) AppendRows(_ context.Context, sheetRange string, rows [][]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.ranges = append(f.ranges, sheetRange)
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeSheet) ReadRange(context.Context, string) ([][]interface{}, error) {
	return f.rows, nil
}

func seedTraces(t *testing.T, store *memory.Store, entries ...models.Trace) {
	t.Helper()
	for _, e := range entries {
		if err := store.AppendTrace(context.Background(), e); err != nil {
			t.Fatalf("append trace: %v", err)
		}
	}
}

func TestExportDay(t *testing.T) {
	loc := time.FixedZone("GMT+1", 3600)
	store := memory.NewStore()
	seedTraces(t, store,
		models.Trace{BatchID: "OLD", Label: "SPLIT", Timestamp: time.Date(2025, 6, 13, 22, 59, 0, 0, time.UTC)},
		models.Trace{BatchID: "B", FarmerID: "f1", Label: "SPLIT", ChangedBy: "f1", Timestamp: time.Date(2025, 6, 13, 23, 0, 0, 0, time.UTC)},
		models.Trace{BatchID: "B", FarmerID: "f1", Label: "REJECTED - Reason: bruised", ChangedBy: "d1", Timestamp: time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)},
		models.Trace{BatchID: "C", FarmerID: "f2", Label: "REJECTED - Reason: N/A", ChangedBy: "d1", Timestamp: time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)},
		models.Trace{BatchID: "NEXT", Label: "SPLIT", Timestamp: time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC)},
	)

	sheet := &fakeSheet{}
	svc := NewService(store, sheet, loc, nil)

	summary, err := svc.ExportDay(context.Background(), time.Date(2025, 6, 14, 12, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if summary.Entries != 3 || summary.Batches != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.ByEvent["REJECTED"] != 2 || summary.ByEvent["SPLIT"] != 1 {
		t.Fatalf("unexpected event counts: %+v", summary.ByEvent)
	}

	if len(sheet.ranges) != 1 || sheet.ranges[0] != "Trace!A:E" {
		t.Fatalf("unexpected ranges: %v", sheet.ranges)
	}
	if len(sheet.rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(sheet.rows))
	}
	if sheet.rows[0][0] != "2025-06-14T00:00:00+01:00" || sheet.rows[0][1] != "B" || sheet.rows[1][3] != "REJECTED - Reason: bruised" {
		t.Fatalf("unexpected first rows: %+v", sheet.rows[:2])
	}

	msg := summary.Message()
	if !strings.HasPrefix(msg, "Batch activity (2025-06-14): 3 events across 2 batches.") || !strings.Contains(msg, "- REJECTED: 2") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestExportDayWithoutSheet(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, nil, nil)
	summary, err := svc.ExportDay(context.Background(), time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if summary.Message() != "Batch activity (2025-06-14): no lifecycle events recorded." {
		t.Fatalf("unexpected message: %q", summary.Message())
	}
}

func TestExportDaySheetFailure(t *testing.T) {
	store := memory.NewStore()
	seedTraces(t, store, models.Trace{BatchID: "B", Label: "APPROVED", Timestamp: time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)})
	svc := NewService(store, &fakeSheet{err: errors.New("quota exceeded")}, time.UTC, nil)

	summary, err := svc.ExportDay(context.Background(), time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatalf("expected the sheet error to surface")
	}
	if summary.Entries != 1 {
		t.Fatalf("summary should still be returned, got %+v", summary)
	}
}
