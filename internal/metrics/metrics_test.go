package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCategory(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		reason    string
		wantDelta float64
	}{
		{name: "success does not count as failure", category: "errors"},
		{name: "data source failure", category: "network", reason: "data_source", wantDelta: 1},
		{name: "no data failure", category: "rage", reason: "no_data", wantDelta: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reason := tc.reason
			if reason == "" {
				reason = "data_source"
			}
			before := testutil.ToFloat64(CategoryFailures.WithLabelValues(tc.category, reason))

			RecordCategory(tc.category, 25*time.Millisecond, tc.reason)

			after := testutil.ToFloat64(CategoryFailures.WithLabelValues(tc.category, reason))
			require.Equal(t, tc.wantDelta, after-before)
		})
	}
}

func TestRecordReport(t *testing.T) {
	before := testutil.ToFloat64(ReportsBuilt.WithLabelValues("cli"))
	RecordReport("cli")
	require.Equal(t, before+1, testutil.ToFloat64(ReportsBuilt.WithLabelValues("cli")))
}
