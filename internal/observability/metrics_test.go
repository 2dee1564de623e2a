package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFetch(t *testing.T) {
	total := DefaultMetrics.FetchesTotal.WithLabelValues("testsrc", "floor")
	empty := DefaultMetrics.FetchEmptyResults.WithLabelValues("testsrc", "floor")
	totalBefore := testutil.ToFloat64(total)
	emptyBefore := testutil.ToFloat64(empty)

	RecordFetch("testsrc", "floor", true, 10*time.Millisecond)
	RecordFetch("testsrc", "floor", false, 10*time.Millisecond)

	if got := testutil.ToFloat64(total) - totalBefore; got != 2 {
		t.Errorf("Expected 2 fetches recorded, got %v", got)
	}
	if got := testutil.ToFloat64(empty) - emptyBefore; got != 1 {
		t.Errorf("Expected 1 empty fetch recorded, got %v", got)
	}
}

func TestRecordPurchase(t *testing.T) {
	resolved := DefaultMetrics.PurchasesReconstructed.WithLabelValues("resolved")
	unknown := DefaultMetrics.PurchasesReconstructed.WithLabelValues("unknown")
	outcome := DefaultMetrics.ClassificationOutcomes.WithLabelValues("testmarket")
	resolvedBefore := testutil.ToFloat64(resolved)
	unknownBefore := testutil.ToFloat64(unknown)
	outcomeBefore := testutil.ToFloat64(outcome)

	RecordPurchase(true, "testmarket")
	RecordPurchase(false, "testmarket")

	if got := testutil.ToFloat64(resolved) - resolvedBefore; got != 1 {
		t.Errorf("Expected 1 resolved purchase, got %v", got)
	}
	if got := testutil.ToFloat64(unknown) - unknownBefore; got != 1 {
		t.Errorf("Expected 1 unknown purchase, got %v", got)
	}
	if got := testutil.ToFloat64(outcome) - outcomeBefore; got != 2 {
		t.Errorf("Expected 2 classification outcomes, got %v", got)
	}
}

func TestRecordRPCLatency(t *testing.T) {
	before := testutil.CollectAndCount(DefaultMetrics.RPCCallLatency)

	RecordRPCLatency("testMethod", 0.05)

	if after := testutil.CollectAndCount(DefaultMetrics.RPCCallLatency); after != before+1 {
		t.Errorf("Expected a new latency series, had %d now %d", before, after)
	}
}

func TestRecordSalesEmitted_SetsWatermark(t *testing.T) {
	RecordSalesEmitted("testsrc", "testcol", 3, 1700000000123)

	gauge := DefaultMetrics.SyncWatermark.WithLabelValues("testsrc/last_sales_testcol")
	if got := testutil.ToFloat64(gauge); got != 1700000000123 {
		t.Errorf("Watermark gauge mismatch: %v", got)
	}
}
