package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"aadhaar/internal/amqp"
)

var (
	triggerReason  string
	triggerTimeout time.Duration
)

var triggerReloadCmd = &cobra.Command{
	Use:   "trigger-reload",
	Short: "Ask running services to reload over AMQP",
	Long: `Publish a reload request to AMQP_RELOAD_QUEUE on AMQP_URL. Every
service consuming the queue reloads its input directory once.`,
	RunE: runTriggerReload,
}

func init() {
	triggerReloadCmd.Flags().StringVarP(&triggerReason, "reason", "r", "manual", "Reason recorded with the request")
	triggerReloadCmd.Flags().DurationVar(&triggerTimeout, "timeout", 10*time.Second, "Publish timeout")
}

func runTriggerReload(cmd *cobra.Command, args []string) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is not set")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReloadQueue, newLogger())
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), triggerTimeout)
	defer cancel()

	req := amqp.NewReloadRequest(triggerReason, requester())
	if err := client.PublishReloadRequest(ctx, req); err != nil {
		return fmt.Errorf("publishing reload request: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reload requested: %s\n", req.RequestID)
	return nil
}

func requester() string {
	host, err := os.Hostname()
	if err != nil {
		return "aadhaarctl"
	}
	return "aadhaarctl@" + host
}
