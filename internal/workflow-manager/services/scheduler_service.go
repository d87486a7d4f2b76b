package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const DefaultCycleCronExpression = "0 7 * * *"

// SchedulerService wires the recurring-cycle driver to gocron. The scheduled
// job is the only timer in the system; the cycle service itself owns no clock
// beyond "today".
type SchedulerService struct {
	Cycles     *CycleService
	Scheduler  gocron.Scheduler
	appContext context.Context
}

func NewSchedulerService(ctx context.Context, cycles *CycleService) (*SchedulerService, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &SchedulerService{Cycles: cycles, Scheduler: s, appContext: ctx}, nil
}

func (s *SchedulerService) Start() {
	log.Println("SchedulerService starting...")
	s.Scheduler.Start()
	s.ScheduleRecurringCycleJob()
	log.Println("SchedulerService started and recurring cycle job scheduled.")
}

func (s *SchedulerService) Stop() {
	log.Println("SchedulerService stopping...")
	if err := s.Scheduler.Shutdown(); err != nil {
		log.Printf("Error shutting down gocron scheduler: %v", err)
	} else {
		log.Println("Gocron scheduler shut down successfully.")
	}
}

// ScheduleRecurringCycleJob (re)registers the cron job that invokes
// StartRecurringCycles. The cron expression comes from
// CYCLE_CRON_EXPRESSION, daily at 07:00 by default.
func (s *SchedulerService) ScheduleRecurringCycleJob() {
	cronExpr := os.Getenv("CYCLE_CRON_EXPRESSION")
	if cronExpr == "" {
		cronExpr = DefaultCycleCronExpression
	}

	s.Scheduler.RemoveByTags("recurring_cycles")

	job, err := s.Scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() { s.Cycles.StartRecurringCycles(s.appContext) }),
		gocron.WithName("recurring_cycle_builder"),
		gocron.WithTags("recurring_cycles"),
	)
	if err != nil {
		log.Printf("Error scheduling recurring cycle job with cron '%s': %v", cronExpr, err)
		return
	}

	logMessage := fmt.Sprintf("Scheduled recurring cycle job with cron '%s'. gocron Job ID: %s, Tags: %v",
		cronExpr, job.ID(), job.Tags())
	if nextRunTime, errNextRun := job.NextRun(); errNextRun != nil {
		logMessage += fmt.Sprintf(", Next Run: (error: %v)", errNextRun)
	} else {
		logMessage += fmt.Sprintf(", Next Run: %s", nextRunTime.Format(time.RFC3339))
	}
	log.Println(logMessage)
	log.Printf("%d jobs currently scheduled.", len(s.Scheduler.Jobs()))
}

// RefreshScheduledJobs re-registers the cycle job; exposed through the admin
// endpoint so a changed cron expression takes effect without a restart.
func (s *SchedulerService) RefreshScheduledJobs() { s.ScheduleRecurringCycleJob() }

// RunNow triggers one catch-up pass outside the schedule.
func (s *SchedulerService) RunNow() { s.Cycles.StartRecurringCycles(s.appContext) }
