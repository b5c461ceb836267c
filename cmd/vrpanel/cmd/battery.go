package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/panel"
	"github.com/nfrund/vrpanel/internal/statesync"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Show the headset battery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if !followFlag {
			info, err := client.GetBatteryInfo(cmd.Context())
			if errors.Is(err, api.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No headset connected")
				return nil
			}
			if err != nil {
				return err
			}
			printBattery(cmd, info)
			return nil
		}

		return follow(cmd, func(ctx context.Context, store *statesync.Store) (statesync.Unsubscribe, error) {
			monitor := panel.NewBatteryMonitor(client)
			stop, err := monitor.Start(ctx, store)
			if err != nil {
				return nil, err
			}
			if info := monitor.Info().Get(); info != nil {
				printBattery(cmd, info)
			}
			unwatch := monitor.Info().Subscribe(func(info *api.AndroidBatteryInfo) {
				if info != nil {
					printBattery(cmd, info)
				}
			})
			return func() {
				unwatch()
				stop()
			}, nil
		})
	},
}

func printBattery(cmd *cobra.Command, info *api.AndroidBatteryInfo) {
	fmt.Fprintln(cmd.OutOrStdout(), batteryLine(info))
}

func batteryLine(info *api.AndroidBatteryInfo) string {
	stats := info.Stats
	line := fmt.Sprintf("%d%% (%s) %s", stats.Percent(), panel.BandFor(stats.Percent()), stats.PowerSource)
	if stats.IsWeakCharger {
		line += ", weak charger"
	}
	return line
}

func init() {
	rootCmd.AddCommand(batteryCmd)
	batteryCmd.Flags().BoolVar(&followFlag, "follow", false, "keep running and print every battery update")
}
