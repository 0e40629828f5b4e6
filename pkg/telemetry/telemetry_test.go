package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTraceMarksAndFinishesOnce(t *testing.T) {
	tr := Track("test.op")
	tr.Mark("first")
	tr.Mark("second")
	assert.Len(t, tr.Steps, 2)
	assert.Equal(t, "first", tr.Steps[0].Name)

	assert.Greater(t, tr.Finish(), time.Duration(0))
	assert.Equal(t, time.Duration(0), tr.Finish())
}

func TestSlowTracesAreCounted(t *testing.T) {
	defer SetSlowThreshold(SlowThreshold())
	SetSlowThreshold(time.Nanosecond)

	before := testutil.ToFloat64(slowOps.WithLabelValues("test.slow"))
	tr := Track("test.slow")
	time.Sleep(time.Millisecond)
	tr.Finish()
	assert.Equal(t, before+1, testutil.ToFloat64(slowOps.WithLabelValues("test.slow")))
}

func TestNilTraceIsSafe(t *testing.T) {
	var tr *Trace
	tr.Mark("x")
	assert.Equal(t, time.Duration(0), tr.Finish())
}
