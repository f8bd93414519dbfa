package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultCronSpec = "0 21 * * *"

// Scheduler runs the daily usage report on a cron spec (UTC).
type Scheduler struct {
	cron       *cron.Cron
	cronSpec   string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

func New(cronSpec string) *Scheduler {
	if cronSpec == "" {
		cronSpec = defaultCronSpec
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		cronSpec: cronSpec,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetReportFunction sets the report generator invoked on each tick.
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		log.Println("⚠️ Report function not set, scheduler will not generate reports")
		return nil
	}

	_, err := s.cron.AddFunc(s.cronSpec, func() {
		log.Println("🕘 Triggered daily report generation")
		if err := s.reportFunc(s.ctx); err != nil {
			log.Printf("❌ Daily report generation failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - daily reports on %q (UTC)", s.cronSpec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
