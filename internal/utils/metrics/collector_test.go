package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
)

func refresh(typ events.EventType, trigger events.Trigger, attempt int, at time.Time) events.RefreshEvent {
	return events.RefreshEvent{
		BaseEvent: events.BaseEvent{EventType: typ, EventTime: at},
		Account:   "acct",
		Trigger:   trigger,
		Attempt:   attempt,
		Attempts:  3,
	}
}

func TestCollector_ObserveCycle(t *testing.T) {
	c := NewCollector()
	t0 := time.Unix(1700000000, 0)

	c.Observe(refresh(events.RefreshStarted, events.TriggerBind, 1, t0))
	c.Observe(refresh(events.RefreshRetrying, events.TriggerBind, 1, t0.Add(time.Second)))
	c.Observe(refresh(events.RefreshStarted, events.TriggerBind, 2, t0.Add(3*time.Second)))
	ok := refresh(events.RefreshSucceeded, events.TriggerBind, 2, t0.Add(4*time.Second))
	ok.Positions = 2
	c.Observe(ok)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.attempts.WithLabelValues("bind")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("bind")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycles.WithLabelValues("bind", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.positions))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollector_FailedCycle(t *testing.T) {
	c := NewCollector()
	t0 := time.Now()

	c.Observe(refresh(events.RefreshStarted, events.TriggerPeriodic, 1, t0))
	c.Observe(refresh(events.RefreshFailed, events.TriggerPeriodic, 1, t0))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycles.WithLabelValues("periodic", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.retries.WithLabelValues("periodic")))
}

func TestCollector_AttachAndServe(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 8)
	c := NewCollector()
	subs := c.Attach(bus)
	require.Len(t, subs, 4)

	require.NoError(t, bus.PublishSync(context.Background(),
		refresh(events.RefreshStarted, events.TriggerManual, 1, time.Now())))
	require.NoError(t, bus.Shutdown(context.Background()))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dlmm_tracker_fetch_attempts_total{trigger="manual"} 1`)
}
