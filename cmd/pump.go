package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mixbot/core/actuation"
	_ "github.com/kilianp07/mixbot/infra/actuator"
	"github.com/kilianp07/mixbot/infra/logger"
)

var pumpDuration time.Duration

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Pump diagnostics",
}

var pumpTestCmd = &cobra.Command{
	Use:   "test <channel>",
	Short: "Run one channel for the test duration",
	Args:  cobra.ExactArgs(1),
	RunE:  runPumpTest,
}

var pumpOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch every channel off",
	RunE:  runPumpOff,
}

func init() {
	pumpTestCmd.Flags().DurationVarP(&pumpDuration, "duration", "d", 0, "override the configured test duration")
	pumpCmd.AddCommand(pumpTestCmd, pumpOffCmd)
	rootCmd.AddCommand(pumpCmd)
}

func openEngine() (*actuation.Engine, actuation.Driver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	drv, err := actuation.NewDriver(cfg.Actuation.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("actuator %s: %w", cfg.Actuation.Backend.Type, err)
	}
	eng, err := actuation.NewEngine(drv, cfg.Actuation.Calibration(), logger.New("pump"), nil)
	if err != nil {
		_ = drv.Close()
		return nil, nil, err
	}
	if pumpDuration <= 0 {
		pumpDuration = cfg.Actuation.TestDuration()
	}
	return eng, drv, nil
}

func runPumpTest(cmd *cobra.Command, args []string) error {
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid channel %q", args[0])
	}
	eng, drv, err := openEngine()
	if err != nil {
		return err
	}
	defer drv.Close()
	if err := eng.TestChannel(cmd.Context(), ch, pumpDuration); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "channel %d ran for %s\n", ch, pumpDuration)
	return nil
}

func runPumpOff(cmd *cobra.Command, _ []string) error {
	eng, drv, err := openEngine()
	if err != nil {
		return err
	}
	defer drv.Close()
	return eng.Reset()
}
