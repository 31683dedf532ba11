package mint

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxPendingMints represents the max number of mint triggers that can be
// outstanding before new triggers are dropped. A buffered channel of this
// arbitrary number keeps the handoff simple; a dropped trigger is picked up
// later by the failed-batch sweep.
const maxPendingMints = 100

// Runner owns the goroutine that executes mint triggers handed off by the
// HTTP layer. The verification response never waits on chain confirmation;
// the handler's responsibility ends at Enqueue.
type Runner struct {
	log     *zap.SugaredLogger
	core    *Core
	ctx     context.Context
	cancel  context.CancelFunc
	pending chan uuid.UUID
	wg      sync.WaitGroup
	shut    chan struct{}
}

// NewRunner constructs a runner around the specified core.
func NewRunner(log *zap.SugaredLogger, core *Core) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		log:     log,
		core:    core,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(chan uuid.UUID, maxPendingMints),
		shut:    make(chan struct{}),
	}
}

// Run starts the mint goroutine and does not return until it is running.
func (r *Runner) Run() {
	r.wg.Add(1)

	hasStarted := make(chan bool)

	go func() {
		defer r.wg.Done()
		hasStarted <- true
		r.mintOperations()
	}()

	<-hasStarted
}

// Shutdown cancels any in-flight mint at its next suspension point and
// terminates the goroutine. Pending triggers that never ran are recovered
// by the failed-batch sweep after restart.
func (r *Runner) Shutdown() {
	r.log.Infow("mint runner: shutdown: started")
	defer r.log.Infow("mint runner: shutdown: completed")

	r.cancel()
	close(r.shut)
	r.wg.Wait()
}

// Enqueue hands a batch to the mint goroutine without blocking. It reports
// false when the queue is full and the trigger was dropped.
func (r *Runner) Enqueue(batchID uuid.UUID) bool {
	select {
	case r.pending <- batchID:
		return true
	default:
		r.log.Errorw("mint runner: queue full, trigger dropped", "batch", batchID)
		return false
	}
}

// mintOperations consumes pending triggers one at a time, serializing mint
// attempts launched through this runner.
func (r *Runner) mintOperations() {
	r.log.Infow("mint runner: G started")
	defer r.log.Infow("mint runner: G completed")

	for {
		select {
		case batchID := <-r.pending:
			if _, err := r.core.TriggerMint(r.ctx, batchID); err != nil {
				r.log.Errorw("mint runner: trigger failed", "batch", batchID, "ERROR", err)
			}

		case <-r.shut:
			r.log.Infow("mint runner: received shut signal")
			return
		}
	}
}
