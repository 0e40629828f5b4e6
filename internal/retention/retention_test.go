package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedesk/pkg/config"
	"pagedesk/pkg/timeutil"
	"pagedesk/pkg/webhooklog"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int
	block   chan struct{}
}

func (f *fakePurger) PurgeBefore(cutoff time.Time, _ bool) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, nil
}

func TestNewRejectsBadPeriod(t *testing.T) {
	_, err := New(config.RetentionConfig{Period: "later"}, &fakePurger{})
	assert.Error(t, err)
}

func TestRunImmediateCutoff(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	defer timeutil.SetClock(func() time.Time { return now })()

	p := &fakePurger{n: 3}
	rm, err := New(config.RetentionConfig{Period: "2d"}, p)
	require.NoError(t, err)

	rep, err := rm.RunImmediate()
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), rep.Cutoff)
	assert.Equal(t, 3, rep.Purged)
	assert.NotEmpty(t, rep.RunID)

	last, ok := rm.Last()
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)
}

func TestDryRunPurgesNothing(t *testing.T) {
	l, err := webhooklog.Open(webhooklog.Options{})
	require.NoError(t, err)
	defer l.Close()

	old := time.Now().Add(-72 * time.Hour)
	_, err = l.Append(webhooklog.Delivery{ReceivedAt: old})
	require.NoError(t, err)
	_, err = l.Append(webhooklog.Delivery{})
	require.NoError(t, err)

	rm, err := New(config.RetentionConfig{Period: "24h", DryRun: true}, l)
	require.NoError(t, err)
	rep, err := rm.RunImmediate()
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Matched)
	assert.Equal(t, 0, rep.Purged)

	rm, err = New(config.RetentionConfig{Period: "24h"}, l)
	require.NoError(t, err)
	rep, err = rm.RunImmediate()
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Purged)
	n, _ := l.Count()
	assert.Equal(t, 1, n)
}

func TestConcurrentRunsRejected(t *testing.T) {
	p := &fakePurger{block: make(chan struct{})}
	rm, err := New(config.RetentionConfig{Period: "1h"}, p)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = rm.RunImmediate()
	}()
	require.Eventually(t, func() bool {
		rm.mu.Lock()
		defer rm.mu.Unlock()
		return rm.running
	}, time.Second, 5*time.Millisecond)

	_, err = rm.RunImmediate()
	assert.ErrorIs(t, err, ErrRunInProgress)
	close(p.block)
	<-done
}

func TestStartDisabledIsNoop(t *testing.T) {
	rm, err := New(config.RetentionConfig{Period: "1h"}, &fakePurger{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rm.Start(ctx)
	rm.Stop()
}
