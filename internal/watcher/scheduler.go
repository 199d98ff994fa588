package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock abstracts the scheduler's timer so tests can drive sweeps
// deterministically.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func SystemClock() Clock {
	return systemClock{}
}

// Scheduler runs a confirmation sweep every effective interval until its
// context is cancelled. The interval is recomputed before each wait, so a
// newly watched transaction with a shorter override takes effect on the
// next cycle.
type Scheduler struct {
	watcher *Watcher
	clock   Clock
	done    chan struct{}
}

func NewScheduler(watcher *Watcher, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		watcher: watcher,
		clock:   clock,
		done:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	log.Info().
		Dur("PollInterval", s.watcher.EffectiveInterval()).
		Msg("[Scheduler] [run] starting confirmation sweep loop")
	for {
		interval := s.watcher.EffectiveInterval()
		select {
		case <-ctx.Done():
			log.Info().Msg("[Scheduler] [run] context cancelled, stopping sweep loop")
			return
		case <-s.clock.After(interval):
			s.watcher.CheckNow(ctx)
		}
	}
}

// Done is closed once the sweep loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
