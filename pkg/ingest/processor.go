package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pagedesk/pkg/ingest/queue"
	"pagedesk/pkg/logger"
)

// Processor runs one worker per queue lane. Each worker applies its lane's
// items in order and publishes a Result per item.
type Processor struct {
	q        *queue.Queue
	d        *Dispatcher
	results  chan Result
	wg       sync.WaitGroup
	running  int32
	paused   int32
	inFlight int64
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewProcessor creates a Processor draining q through d.
func NewProcessor(q *queue.Queue, d *Dispatcher, resultBuffer int) *Processor {
	if resultBuffer <= 0 {
		panic("ingest.NewProcessor: resultBuffer must be > 0; ensure config.ValidateConfig() applied defaults")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{q: q, d: d, results: make(chan Result, resultBuffer), ctx: ctx, cancel: cancel}
}

// Results is closed once every worker has exited. Workers block while it is
// full, so it needs a consumer for as long as the processor runs.
func (p *Processor) Results() <-chan Result { return p.results }

// Pause stops processing new items until Resume is called.
func (p *Processor) Pause() { atomic.StoreInt32(&p.paused, 1) }

// Resume resumes processing after a Pause.
func (p *Processor) Resume() { atomic.StoreInt32(&p.paused, 0) }

// Paused reports whether workers are held.
func (p *Processor) Paused() bool { return atomic.LoadInt32(&p.paused) == 1 }

// InFlight returns the number of items being applied right now.
func (p *Processor) InFlight() int64 { return atomic.LoadInt64(&p.inFlight) }

// Start launches one worker per lane.
func (p *Processor) Start() {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return
	}
	for lane := 0; lane < p.q.Lanes(); lane++ {
		p.wg.Add(1)
		go func(lane int) {
			defer p.wg.Done()
			p.workerLoop(lane)
		}(lane)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
	logger.Info("ingest_processor_started", "workers", p.q.Lanes())
}

// Stop closes the queue and waits for workers to drain it. When ctx ends
// first the processor context is cancelled: pending lookups give up, items
// still queued are discarded, and Stop returns once every worker has exited.
func (p *Processor) Stop(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return
	}
	p.q.Close()
	p.Resume()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("ingest_processor_stopped")
	case <-ctx.Done():
		p.cancel()
		logger.Warn("ingest_processor_stop_timeout", "queued", p.q.Len())
		<-done
		logger.Info("ingest_processor_stopped", "cancelled", true)
	}
}

func (p *Processor) workerLoop(lane int) {
	for it := range p.q.Out(lane) {
		if p.ctx.Err() != nil {
			droppedTotal.Inc()
			it.Release()
			continue
		}
		for atomic.LoadInt32(&p.paused) == 1 {
			time.Sleep(10 * time.Millisecond)
		}
		p.process(it)
	}
}

func (p *Processor) process(it *queue.Item) {
	atomic.AddInt64(&p.inFlight, 1)
	defer atomic.AddInt64(&p.inFlight, -1)
	defer it.Release()

	queueWaitSeconds.Observe(time.Since(it.EnqueuedAt).Seconds())
	res := p.d.Dispatch(p.ctx, it.Event)
	res.DeliveryID = it.DeliveryID

	eventsTotal.WithLabelValues(string(res.Kind), string(res.Status)).Inc()
	applySeconds.WithLabelValues(string(res.Kind)).Observe(res.Duration.Seconds())
	if res.Evicted {
		evictedTotal.Inc()
	}
	if res.FallbackProfile {
		fallbackProfilesTotal.Inc()
	}

	select {
	case p.results <- res:
	case <-p.ctx.Done():
		resultsDroppedTotal.Inc()
	}
}
