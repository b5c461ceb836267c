package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/panel"
	"github.com/nfrund/vrpanel/internal/statesync"
	"github.com/nfrund/vrpanel/internal/storage"
)

var (
	followFlag       bool
	coverRefreshFlag bool
	coverOutputFlag  string
)

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List, launch and stop games",
	Long: `The games command manages the appliance's game library and the running session.

Examples:
  vrpanel games list
  vrpanel games launch 546560
  vrpanel games active --follow
  vrpanel games cover 546560 -o alyx.jpg
  vrpanel games kill`,
}

var gamesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed games",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(); err != nil {
			return err
		}
		games, err := newClient().ListGames(cmd.Context())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), games)
		}

		w := newTable(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintln(w, "ID\tTITLE\tBACKEND\tPLAYTIME")
		for _, g := range games {
			playtime := (time.Duration(g.TotalPlaytimeSec) * time.Second).String()
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.ID, truncateString(g.Title, 40), g.VRBackend, playtime)
		}
		return nil
	},
}

var gamesLaunchCmd = &cobra.Command{
	Use:   "launch <game-id>",
	Short: "Launch a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().LaunchGame(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Launched %s\n", args[0])
		return nil
	},
}

var gamesKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the running game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().KillActiveGame(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stopped the active game")
		return nil
	},
}

var gamesReloadCmd = &cobra.Command{
	Use:   "reload-backend",
	Short: "Reconnect the VR streaming backend of the running game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().ReloadBackend(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Backend reloaded")
		return nil
	},
}

var gamesActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the running game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if !followFlag {
			session, err := client.GetActiveGame(cmd.Context())
			if err != nil {
				return err
			}
			printSession(cmd, session)
			return nil
		}

		return follow(cmd, func(ctx context.Context, store *statesync.Store) (statesync.Unsubscribe, error) {
			tracker := panel.NewSessionTracker(client)
			stop, err := tracker.Start(ctx, store)
			if err != nil {
				return nil, err
			}
			printSession(cmd, tracker.Current())
			unwatch := tracker.Session().Subscribe(func(s *api.GameSession) { printSession(cmd, s) })
			return func() {
				unwatch()
				stop()
			}, nil
		})
	},
}

var gamesCoverCmd = &cobra.Command{
	Use:   "cover <game-id>",
	Short: "Download a game's cover image into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()
		cache := storage.NewCoverCache(storage.NewAferoStore(fs), appConfig.CoverCacheDir, newClient())

		get := cache.Get
		if coverRefreshFlag {
			get = cache.Fetch
		}
		data, err := get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if coverOutputFlag != "" {
			if err := afero.WriteFile(fs, coverOutputFlag, data, 0o644); err != nil {
				return fmt.Errorf("write cover: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), coverOutputFlag)
			return nil
		}
		path, _ := cache.Path(args[0])
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func printSession(cmd *cobra.Command, s *api.GameSession) {
	out := cmd.OutOrStdout()
	if s == nil {
		fmt.Fprintln(out, "No game running")
		return
	}
	fmt.Fprintf(out, "%s (%s) running for %s on %s\n",
		s.Game.Title, s.Game.ID, s.Elapsed(time.Now()), s.VRDeviceSerial)
}

func init() {
	rootCmd.AddCommand(gamesCmd)
	gamesCmd.AddCommand(gamesListCmd, gamesLaunchCmd, gamesKillCmd, gamesReloadCmd, gamesActiveCmd, gamesCoverCmd)

	gamesListCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json)")
	gamesActiveCmd.Flags().BoolVar(&followFlag, "follow", false, "keep running and print every session change")
	gamesCoverCmd.Flags().BoolVar(&coverRefreshFlag, "refresh", false, "download even when the cover is cached")
	gamesCoverCmd.Flags().StringVarP(&coverOutputFlag, "output", "o", "", "also write the cover to this file")
}

