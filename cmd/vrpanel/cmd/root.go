package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/config"
	"github.com/nfrund/vrpanel/internal/logging"
	"github.com/nfrund/vrpanel/internal/statesync"
)

var (
	serverFlag string
	driverFlag string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vrpanel",
	Short: "Control a VR game-launching appliance",
	Long: `vrpanel talks to a VR game-launching appliance: it lists and launches games,
switches audio devices, reads the headset battery and follows the appliance's
live state socket.

The appliance is found through VRPANEL_SERVER_URL (or --server). Settings may
also come from a .env file in the working directory.

Use "vrpanel [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.New()

		cfg, err := config.New()
		if err != nil {
			return err
		}
		if serverFlag != "" || driverFlag != "" {
			if serverFlag != "" {
				cfg.ServerURL = serverFlag
				cfg.SocketURL = ""
			}
			if driverFlag != "" {
				cfg.WSDriver = driverFlag
			}
			if err := cfg.Finalize(); err != nil {
				return err
			}
		}
		appConfig = cfg
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "appliance URL, e.g. http://192.168.1.108:3001 (overrides "+config.EnvServerURL+")")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "websocket driver: coder or gorilla (overrides "+config.EnvWSDriver+")")
}

func newClient() *api.Client {
	return api.New(appConfig.APIURL(), api.WithTimeout(appConfig.HTTPTimeout))
}

func newStore() (*statesync.Store, error) {
	dialer, err := statesync.NewDialer(appConfig.WSDriver)
	if err != nil {
		return nil, err
	}
	return statesync.New(appConfig.SocketURL,
		statesync.WithDialer(dialer),
		statesync.WithReconnectDelay(appConfig.ReconnectDelay),
		statesync.WithDialTimeout(appConfig.DialTimeout),
	), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// follow runs start against a fresh store and blocks until interrupted.
func follow(cmd *cobra.Command, start func(ctx context.Context, store *statesync.Store) (statesync.Unsubscribe, error)) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	store, err := newStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stop, err := start(ctx, store)
	if err != nil {
		return err
	}
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)\n", appConfig.SocketURL)
	<-ctx.Done()
	return nil
}
