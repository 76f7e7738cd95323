package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/transit-feed/internal/geo"
)

// Builder builds and stores the current feed for a site.
type Builder interface {
	BuildAndStore(ctx context.Context, site geo.Site) error
}

// Scheduler periodically regenerates the feed for configured sites.
type Scheduler struct {
	scheduler *gocron.Scheduler
	builder   Builder
	sites     []geo.Site
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. timeout bounds one site's build.
func New(sites []geo.Site, interval, timeout time.Duration, builder Builder) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		scheduler: s,
		builder:   builder,
		sites:     sites,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.sites) == 0 {
		log.Println("scheduler: no sites configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce builds every site's feed concurrently and returns the number of
// sites that failed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	log.Println("scheduler: running feed job")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, site := range s.sites {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := s.builder.BuildAndStore(ctx, site); err != nil {
				log.Printf("scheduler: feed failed for %s: %v", site.Key(), err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	log.Printf("scheduler: completed feed job (%d/%d sites ok)", len(s.sites)-failed, len(s.sites))
	return failed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
