package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/macilentiores/ChurchStreamGuard/application"
	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/cron"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session controller daemon",
	Long:  `Run the session controller, the trigger listener, the HUD server and the housekeeping tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		serviceManager, err := application.NewServiceManager(cfg)
		if err != nil {
			logger.Error("Failed to create service manager", "error", err)
			return err
		}
		logger.Info("Service manager created")

		// Session controller first: everything else feeds it.
		sessionService := service.NewSessionService()
		if err := serviceManager.AddService(sessionService); err != nil {
			return err
		}

		triggerService := service.NewTriggerService()
		if err := serviceManager.AddService(triggerService); err != nil {
			return err
		}

		httpService := application.NewHTTPService(sessionService)
		if err := serviceManager.AddService(httpService); err != nil {
			return err
		}

		cronTaskManager := cron.NewCronTaskManager()
		cronTaskManager.AddTask(&cron.LogRetentionTask{Log: cfg.Common.Log})
		cronTaskManager.AddTask(&cron.HealthLogTask{Session: sessionService})
		if err := serviceManager.AddService(cronTaskManager); err != nil {
			return err
		}

		if err := serviceManager.StartAll(ctx); err != nil {
			logger.Error("Failed to start services", "error", err)
			return err
		}
		logger.Info("All services started successfully")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		exitCh := make(chan struct{})

		go func() {
			sig := <-sigCh
			logger.Info("Received termination signal", "signal", sig)

			serviceManager.GetEventBus().Publish(event.Event{
				Type:    event.SystemShutdown,
				Payload: "Shutdown triggered by signal",
			})
			cancel()

			logger.Info("=========Starting graceful shutdown...=========")
			shutdownTimer := time.NewTimer(10 * time.Second)
			doneCh := make(chan struct{})

			go func() {
				serviceManager.StopAll()
				logger.Info("All services stopped successfully")
				close(doneCh)
			}()

			select {
			case <-doneCh:
				logger.Info("Graceful shutdown completed")
				if !shutdownTimer.Stop() {
					<-shutdownTimer.C
				}
			case <-shutdownTimer.C:
				logger.Error("Shutdown timed out, forcing exit")
			}
			close(exitCh)
		}()

		select {
		case <-exitCh:
			logger.Info("Server shutdown completed")
		case <-ctx.Done():
			logger.Info("Context canceled, shutting down")
		}
		os.Exit(0)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
