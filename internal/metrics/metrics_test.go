package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)

	m.Transition("create", nil)
	m.Transition("create", errors.New("conflict"))
	m.Notification("request.created", Delivered)
	m.Notification("request.created", Offline)
	m.Notification("request.created", Offline)
	m.Connection("connect")

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("create", "ok")); got != 1 {
		t.Fatalf("expected 1 ok transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("create", "error")); got != 1 {
		t.Fatalf("expected 1 failed transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("request.created", Offline)); got != 2 {
		t.Fatalf("expected 2 offline notifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.connections.WithLabelValues("connect")); got != 1 {
		t.Fatalf("expected 1 connect, got %v", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.Transition("accept", nil)
	m.Notification("request.accepted", Delivered)
	m.Connection("disconnect")
}

func TestMetrics_HandlerExposesOnlineGauge(t *testing.T) {
	m := New(func() int { return 3 })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "lingopals_online_users 3") {
		t.Fatalf("expected online gauge in output, got:\n%s", rr.Body.String())
	}
}
