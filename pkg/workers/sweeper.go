package workers

import (
	"context"
	"sync"
	"time"

	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
)

// Sweeper periodically resynchronizes every connected calendar and requeues
// stale in-flight messages. It is the safety net behind webhook delivery.
type Sweeper struct {
	sync     *calendar.Synchronizer
	interval time.Duration
	recover  []*queues.RedisQueue
	logger   logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper. Queues passed in recover get their stale
// messages requeued on each tick.
func NewSweeper(sync *calendar.Synchronizer, interval time.Duration, recover []*queues.RedisQueue, logger logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Sweeper{
		sync:     sync,
		interval: interval,
		recover:  recover,
		logger:   logger,
	}
}

// Start launches the sweep loop. The first sweep runs after one interval.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) tick(ctx context.Context) {
	s.sync.Sweep(ctx)
	for _, q := range s.recover {
		if err := q.RecoverStaleMessages(); err != nil {
			s.logger.Warn("stale message recovery failed",
				logging.F("queue", q.Name()), logging.Err(err))
		}
	}
}
