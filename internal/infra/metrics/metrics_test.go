//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersUseNormalizedLabels(t *testing.T) {
	before := testutil.ToFloat64(ordersTotal.WithLabelValues("pending"))
	IncOrder("  Pending ")
	if got := testutil.ToFloat64(ordersTotal.WithLabelValues("pending")); got != before+1 {
		t.Errorf("orders_total{pending} = %v, want %v", got, before+1)
	}

	IncVerification("")
	if got := testutil.ToFloat64(verificationsTotal.WithLabelValues("unknown")); got < 1 {
		t.Errorf("empty label should map to unknown, got %v", got)
	}
}

func TestStoreConflictCounter(t *testing.T) {
	IncStoreConflict("file", "keys")
	IncStoreConflict("file", "keys")
	if got := testutil.ToFloat64(storeConflicts.WithLabelValues("file", "keys")); got < 2 {
		t.Errorf("store_update_conflicts_total = %v, want >= 2", got)
	}
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
