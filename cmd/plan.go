package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voltroute/planner/app"
	"github.com/voltroute/planner/config"
	"github.com/voltroute/planner/core/plan"
	"github.com/voltroute/planner/infra/logger"
)

var planReqPath string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a route once and print the result",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planReqPath, "request", "r", "", "planning request file (JSON)")
	_ = planCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	raw, err := os.ReadFile(planReqPath)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req plan.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("plan-command").Errorf("service close: %v", err)
		}
	}()

	svc.RefreshStations(ctx)
	res, err := svc.Planner.PlanRoute(ctx, req)
	if err != nil {
		return fmt.Errorf("plan route: %w", err)
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
