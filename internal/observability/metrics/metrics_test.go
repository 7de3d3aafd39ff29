package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAndRecords(t *testing.T) {
	m := New("quantumxfer_test", "transfer")

	m.BytesTransferred.WithLabelValues("sender").Add(1024)
	m.PacketsSent.WithLabelValues("sender").Inc()
	m.Retransmits.WithLabelValues("sender").Inc()
	m.CongestionWindow.WithLabelValues("sender").Set(32)
	m.RTTEstimateSeconds.WithLabelValues("sender").Set(0.05)
	m.FECRecovered.WithLabelValues("receiver").Inc()
	m.TransferErrors.WithLabelValues("sender", "timeout").Inc()

	if got := testutil.ToFloat64(m.PacketsSent.WithLabelValues("sender")); got != 1 {
		t.Errorf("PacketsSent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesTransferred.WithLabelValues("sender")); got != 1024 {
		t.Errorf("BytesTransferred = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(m.CongestionWindow.WithLabelValues("sender")); got != 32 {
		t.Errorf("CongestionWindow = %v, want 32", got)
	}
}
