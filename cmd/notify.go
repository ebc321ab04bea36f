/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rideshare-app/apiserver/config"
	"github.com/rideshare-app/apiserver/internal/logging"
	"github.com/rideshare-app/apiserver/internal/mq"
	"github.com/rideshare-app/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// notifyCmd runs the delivery worker against a shared broker.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume code deliveries and ride events from the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.MQBackend == config.MQLog {
			return fmt.Errorf("MQ_BACKEND=%s is in-process; the server runs its own worker", config.MQLog)
		}
		logger := logging.NewLogger(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := mq.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer bus.Close()

		logger.Info("notify worker started", slog.String("backend", cfg.MQBackend))
		return notify.NewWorker(bus, notify.LogGateway{Logger: logger}, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
