package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rakeplan/infra/logger"
	"github.com/kilianp07/rakeplan/simulator"
)

var simOpts struct {
	broker   string
	cfg      simulator.Config
	capacity map[string]string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate loading points acknowledging released rakes",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.broker, "broker", "", "MQTT broker URL, overrides mqtt.broker")
	f.DurationVar(&simOpts.cfg.AckLatency, "ack-latency", 0, "delay before acknowledging")
	f.Float64Var(&simOpts.cfg.DropRate, "drop-rate", 0, "probability of never acknowledging")
	f.Float64Var(&simOpts.cfg.DefaultCapacity, "default-capacity", 0, "load accepted by loading points without --capacity")
	f.StringToStringVar(&simOpts.capacity, "capacity", nil, "remaining capacity per loading point, e.g. LP1=2000")
	f.StringSliceVar(&simOpts.cfg.Offline, "offline", nil, "loading points rejecting every rake")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.Log); err != nil {
		return err
	}
	mqttCfg := cfg.MQTT
	if simOpts.broker != "" {
		mqttCfg.Broker = simOpts.broker
	}
	if !mqttCfg.Enabled() {
		return fmt.Errorf("simulate requires mqtt.broker or --broker")
	}
	simCfg := simOpts.cfg
	simCfg.Capacity = make(map[string]float64, len(simOpts.capacity))
	for lp, v := range simOpts.capacity {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("capacity of %s: %w", lp, err)
		}
		simCfg.Capacity[lp] = c
	}
	sim, err := simulator.New(mqttCfg, simCfg, nil)
	if err != nil {
		return err
	}
	return sim.Run(ctx)
}
