package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()

	c.ObserveEdit("setFood", "ok")
	c.ObserveEdit("setFood", "ok")
	c.ObserveEdit("setFood", "ENTRY_EXPIRED")
	c.ObserveStoreRetry("read")
	c.ObserveVerification("mismatch", 20*time.Millisecond)
	c.ObserveTransition("start-delivery", "ok")
	c.SetQueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.edits.WithLabelValues("setFood", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.edits.WithLabelValues("setFood", "ENTRY_EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeRetries.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.verifications.WithLabelValues("mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("start-delivery", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.queueDepth))
}

func TestCollector_LockWait(t *testing.T) {
	c := New()
	c.ObserveLockWait(time.Millisecond, true)
	c.ObserveLockWait(time.Second, false)

	assert.Equal(t, 2, testutil.CollectAndCount(c.lockWait, "mealplan_lock_wait_seconds"))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveEdit("setFood", "ok")
	c.ObserveLockWait(time.Second, true)
	c.ObserveVerification("match", time.Second)
	c.SetQueueDepth(1)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Empty(t, buf.String())
}

func TestCollector_WriteText(t *testing.T) {
	c := New()
	c.ObserveEdit("disallow", "ok")

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Contains(t, buf.String(), `mealplan_member_edits_total{kind="disallow",outcome="ok"} 1`)
	assert.Contains(t, buf.String(), "# TYPE mealplan_verification_queue_depth gauge")
}
