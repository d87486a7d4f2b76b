package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"workflow-cycle-service/internal/workflow-manager/api"
	taskDB "workflow-cycle-service/internal/workflow-manager/db"
	wmKafka "workflow-cycle-service/internal/workflow-manager/kafka"
	"workflow-cycle-service/internal/workflow-manager/services"
	gorm_db "workflow-cycle-service/pkg/db"
)

func main() {
	stdlog.Println("Workflow Manager Service starting...")

	appCtx, appCancel := context.WithCancel(context.Background())

	gormDB, err := gorm_db.NewGormDB()
	if err != nil {
		stdlog.Fatalf("Failed to initialize database: %v", err)
	}
	stdlog.Println("Database initialized successfully.")

	stdlog.Println("Running database migrations...")
	err = gorm_db.AutoMigrate(gormDB,
		&taskDB.Workflow{}, &taskDB.TaskGroup{}, &taskDB.TaskTemplate{},
		&taskDB.Cycle{}, &taskDB.CycleTaskGroup{}, &taskDB.CycleTask{})
	if err != nil {
		stdlog.Fatalf("Failed to migrate database: %v", err)
	}
	stdlog.Println("Database migration successful.")

	cycleEventsProducer := wmKafka.NewCycleEventsProducer()
	notifier := services.NewKafkaNotifier(cycleEventsProducer)

	cycleService := services.NewCycleService(gormDB, notifier, services.EnvUserResolver{})
	statusService := services.NewStatusService(gormDB)

	statusConsumer := services.NewStatusUpdateConsumer(statusService)
	statusConsumer.StartConsuming(appCtx)

	schedulerService, err := services.NewSchedulerService(appCtx, cycleService)
	if err != nil {
		stdlog.Fatalf("Failed to create scheduler service: %v", err)
	}
	schedulerService.Start()

	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = ":8080"
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	h := server.Default(server.WithHostPorts(serverAddr), server.WithExitWaitTime(5*time.Second))

	workflowHandler := api.NewWorkflowHandler(gormDB, cycleService)
	cycleHandler := api.NewCycleHandler(gormDB, cycleService, statusService)

	workflowGroup := h.Group("/workflows")
	{
		workflowGroup.POST("", workflowHandler.CreateWorkflow)
		workflowGroup.GET("", workflowHandler.GetWorkflows)
		workflowGroup.GET("/:id", workflowHandler.GetWorkflowByID)
		workflowGroup.PUT("/:id", workflowHandler.UpdateWorkflow)
		workflowGroup.POST("/:id/task-groups", workflowHandler.CreateTaskGroup)
		workflowGroup.POST("/:id/cycles", cycleHandler.StartCycle)
	}
	taskGroupGroup := h.Group("/task-groups")
	{
		taskGroupGroup.POST("/:id/tasks", workflowHandler.CreateTaskTemplate)
	}
	h.DELETE("/task-templates/:id", workflowHandler.DeleteTaskTemplate)

	cycleGroup := h.Group("/cycles")
	{
		cycleGroup.GET("", cycleHandler.GetCycles)
		cycleGroup.GET("/:id", cycleHandler.GetCycleByID)
		cycleGroup.PUT("/:id/status", cycleHandler.UpdateCycleStatus)
	}
	h.PUT("/cycle-task-groups/:id/status", cycleHandler.UpdateGroupStatus)
	h.PUT("/cycle-tasks/:id/status", cycleHandler.UpdateTaskStatus)

	adminGroup := h.Group("/admin")
	adminGroup.POST("/scheduler/refresh", func(c context.Context, ctxReq *app.RequestContext) {
		schedulerService.RefreshScheduledJobs()
		ctxReq.JSON(http.StatusOK, utils.H{"message": "Scheduler refresh triggered"})
	})
	adminGroup.POST("/scheduler/run-now", func(c context.Context, ctxReq *app.RequestContext) {
		schedulerService.RunNow()
		ctxReq.JSON(http.StatusOK, utils.H{"message": "Recurring cycle run triggered"})
	})

	h.GET("/ping", func(c context.Context, ctxReq *app.RequestContext) {
		ctxReq.JSON(http.StatusOK, utils.H{"message": "pong"})
	})

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		hlog.Infof("Received signal: %s. Initiating graceful shutdown...", sig)

		appCancel()

		shutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpShutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			hlog.Errorf("Hertz server shutdown error: %v", err)
		} else {
			hlog.Info("Hertz server gracefully stopped.")
		}

		schedulerService.Stop()

		statusConsumer.Close()
		hlog.Info("Status update consumer closed.")

		if err := cycleEventsProducer.Close(); err != nil {
			hlog.Errorf("Kafka producer close error: %v", err)
		} else {
			hlog.Info("Kafka producer closed.")
		}
		hlog.Info("Workflow Manager gracefully shut down.")
	}()

	hlog.Infof("Workflow Manager Service fully initialized and starting Hertz server on %s...", serverAddr)
	h.Spin()

	stdlog.Println("Workflow Manager Service has been shut down.")
}
