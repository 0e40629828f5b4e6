package webhooklog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Log {
	t.Helper()
	l, err := Open(Options{CacheSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndRecentNewestFirst(t *testing.T) {
	l := openMem(t)
	assert.True(t, l.InMemory())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := l.Append(Delivery{ReceivedAt: base.Add(time.Duration(i) * time.Second), Object: "page", Events: i, Accepted: i})
		require.NoError(t, err)
	}

	recent, err := l.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 4, recent[0].Events)
	assert.Equal(t, 2, recent[2].Events)
	assert.NotEmpty(t, recent[0].ID)

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRecordResultStatus(t *testing.T) {
	l := openMem(t)

	d, err := l.Append(Delivery{Object: "page", Events: 3, Accepted: 2})
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, d.Status)

	require.NoError(t, l.RecordResult(d.ID, true, ""))
	got, err := l.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, got.Status)

	require.NoError(t, l.RecordResult(d.ID, false, "boom"))
	got, err = l.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, got.Status)
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, "boom", got.LastError)

	assert.ErrorIs(t, l.RecordResult("missing", true, ""), ErrNotFound)
}

func TestEmptyDeliveryIsProcessed(t *testing.T) {
	l := openMem(t)
	d, err := l.Append(Delivery{Object: "page"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, d.Status)
}

func TestPurgeBefore(t *testing.T) {
	l := openMem(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 4; i++ {
		d, err := l.Append(Delivery{ReceivedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	cutoff := base.Add(2 * time.Hour)

	n, err := l.PurgeBefore(cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, _ := l.Count()
	assert.Equal(t, 4, count, "dry run keeps records")

	n, err = l.PurgeBefore(cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, _ = l.Count()
	assert.Equal(t, 2, count)

	_, err = l.Get(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get(ids[3])
	assert.NoError(t, err)
}

func TestOnDiskReopen(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(Options{Path: dir})
	require.NoError(t, err)
	d, err := l.Append(Delivery{Object: "page", Accepted: 1})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "page", got.Object)
	assert.False(t, l.InMemory())
}

func TestCallsAfterCloseReturnErrClosed(t *testing.T) {
	l, err := Open(Options{})
	require.NoError(t, err)
	d, err := l.Append(Delivery{Object: "page", Accepted: 1000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if err := l.RecordResult(d.ID, true, ""); err != nil {
				assert.ErrorIs(t, err, ErrClosed)
				return
			}
		}
	}()
	require.NoError(t, l.Close())
	wg.Wait()

	assert.ErrorIs(t, l.RecordResult(d.ID, true, ""), ErrClosed)
	_, err = l.Append(Delivery{Object: "page"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.Get(d.ID)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.Recent(10)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.PurgeBefore(time.Now(), false)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.Count()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, l.Close())
}
