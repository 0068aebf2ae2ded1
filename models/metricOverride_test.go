package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMetricOverride_AccumulateAddsDeltas(t *testing.T) {
	row := MetricOverride{
		TenantId:            "demo-1",
		Month:               "2025-03",
		ClosedWonCountDelta: 5,
		ClosedWonValueDelta: decimal.NewFromInt(50000),
	}

	row.Accumulate(MetricOverride{
		LeadsDelta:          2,
		ClosedWonCountDelta: 3,
		ClosedWonValueDelta: decimal.NewFromInt(30000),
		PipelineValueDelta:  decimal.NewFromFloat(1250.75),
	})

	if row.ClosedWonCountDelta != 8 {
		t.Errorf("expected closed-won count delta 8, got %d", row.ClosedWonCountDelta)
	}
	if !row.ClosedWonValueDelta.Equal(decimal.NewFromInt(80000)) {
		t.Errorf("expected closed-won value delta 80000, got %s", row.ClosedWonValueDelta)
	}
	if row.LeadsDelta != 2 {
		t.Errorf("expected leads delta 2, got %d", row.LeadsDelta)
	}
	if !row.PipelineValueDelta.Equal(decimal.NewFromFloat(1250.75)) {
		t.Errorf("expected pipeline value delta 1250.75, got %s", row.PipelineValueDelta)
	}

	row.Accumulate(MetricOverride{ClosedWonCountDelta: -4})
	if row.ClosedWonCountDelta != 4 {
		t.Errorf("expected closed-won count delta 4 after negative delta, got %d", row.ClosedWonCountDelta)
	}
}
