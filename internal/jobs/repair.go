// Package jobs runs the scheduled background work
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Repairer replays partially written check-ins
type Repairer interface {
	RunOnce(ctx context.Context) int
	Pending() int
}

// StartRepairJob runs the repair pass on schedule until ctx ends. Overlapping runs are
// skipped.
func StartRepairJob(ctx context.Context, schedule string, repairer Repairer) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		if repairer.Pending() == 0 {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		repaired := repairer.RunOnce(runCtx)
		log.Printf("🔁 Repair pass done: %d repaired, %d still pending", repaired, repairer.Pending())
	})
	if err != nil {
		return nil, fmt.Errorf("invalid repair schedule %q: %w", schedule, err)
	}

	c.Start()
	log.Printf("🔁 Check-in repair job started, schedule=%q", schedule)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		log.Println("Check-in repair job stopped")
	}()
	return c, nil
}
