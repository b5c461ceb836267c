package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/panel"
	"github.com/nfrund/vrpanel/internal/statesync"
)

var muteFlag bool

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Inspect and switch audio devices",
	Long: `The audio command lists the appliance's PipeWire endpoints, switches the
default input or output and sets device volume.

Examples:
  vrpanel audio list outputs
  vrpanel audio default output 52
  vrpanel audio volume 52 40 --mute
  vrpanel audio watch`,
}

var audioListCmd = &cobra.Command{
	Use:       "list [inputs|outputs]",
	Short:     "List audio devices",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"inputs", "outputs"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(); err != nil {
			return err
		}
		kinds := []api.AudioKind{api.AudioOutputs, api.AudioInputs}
		if len(args) == 1 {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			kinds = []api.AudioKind{kind}
		}

		client := newClient()
		all := make(map[api.AudioKind][]api.AudioDevice)
		for _, kind := range kinds {
			devices, err := client.ListAudioDevices(cmd.Context(), kind)
			if err != nil {
				return err
			}
			all[kind] = devices
		}
		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), all)
		}

		w := newTable(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintln(w, "KIND\tID\tDEFAULT\tVOLUME\tMUTED\tDESCRIPTION")
		for _, kind := range kinds {
			for _, d := range all[kind] {
				def := ""
				if d.IsDefault {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%t\t%s\n", kind, d.ID, def, d.Volume, d.IsMuted, truncateString(d.Description, 50))
			}
		}
		return nil
	},
}

var audioDefaultCmd = &cobra.Command{
	Use:   "default <input|output> <device-id>",
	Short: "Make a device the default input or output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		id, err := parseDeviceID(args[1])
		if err != nil {
			return err
		}
		if err := newClient().SetDefaultAudioDevice(cmd.Context(), kind, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Device %d is now the default %s\n", id, kind)
		return nil
	},
}

var audioVolumeCmd = &cobra.Command{
	Use:   "volume <device-id> <0-100>",
	Short: "Set a device's volume and mute flag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDeviceID(args[0])
		if err != nil {
			return err
		}
		volume, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("volume %q: %w", args[1], api.ErrInvalidVolume)
		}
		if err := newClient().SetDeviceVolume(cmd.Context(), id, volume, muteFlag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Device %d volume %d%% muted=%t\n", id, volume, muteFlag)
		return nil
	},
}

var audioWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow default device and volume changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		return follow(cmd, func(ctx context.Context, store *statesync.Store) (statesync.Unsubscribe, error) {
			audio := panel.NewAudioState(client)
			stop, err := audio.Start(ctx, store)
			if err != nil {
				return nil, err
			}
			out := cmd.OutOrStdout()
			printDevice := func(label string) func(*api.AudioDevice) {
				return func(d *api.AudioDevice) {
					if d == nil {
						fmt.Fprintf(out, "%s: none\n", label)
						return
					}
					fmt.Fprintf(out, "%s: %s (id %d, volume %d%%, muted=%t)\n", label, d.Description, d.ID, d.Volume, d.IsMuted)
				}
			}
			printDevice("output")(audio.DefaultOutput().Get())
			printDevice("input")(audio.DefaultInput().Get())

			unwatchOut := audio.DefaultOutput().Subscribe(printDevice("output"))
			unwatchIn := audio.DefaultInput().Subscribe(printDevice("input"))
			unwatchVol := audio.Volume().Subscribe(printDevice("volume"))
			return func() {
				unwatchOut()
				unwatchIn()
				unwatchVol()
				stop()
				audio.Wait()
			}, nil
		})
	},
}

func parseKind(s string) (api.AudioKind, error) {
	kind, ok := api.ParseAudioKind(s)
	if !ok {
		return "", fmt.Errorf("unknown audio kind %q, use input or output", s)
	}
	return kind, nil
}

func parseDeviceID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("device id %q: %w", s, err)
	}
	return uint32(id), nil
}

func init() {
	rootCmd.AddCommand(audioCmd)
	audioCmd.AddCommand(audioListCmd, audioDefaultCmd, audioVolumeCmd, audioWatchCmd)

	audioListCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json)")
	audioVolumeCmd.Flags().BoolVar(&muteFlag, "mute", false, "mute the device")
}
