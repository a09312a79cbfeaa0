package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/discordrpc"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	clientID   string
	transport  string
	logLevel   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "discord-rpc",
		Short: "Talk to the local Discord client over RPC",
		Long: `discord-rpc connects to the Discord desktop client running on this
machine and drives it over its local RPC interface: set or clear the
rich presence of a process, check the connection, or run a fake Discord
for development.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&flags.clientID, "client-id", "", "application client id")
	pf.StringVar(&flags.transport, "transport", "", "transport to use: ipc or websocket")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		presenceCmd(&flags),
		clearCmd(&flags),
		pingCmd(&flags),
		mockCmd(&flags),
		versionCmd(),
	)
	return root
}

// load reads the config and applies the global flags on top of it.
func (f *globalFlags) load() (*Config, error) {
	cfg, err := Load(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.clientID != "" {
		cfg.ClientID = f.clientID
	}
	if f.transport != "" {
		cfg.Transport = f.transport
	}
	if f.logLevel != "" {
		cfg.Logger.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

// connect loads the config and returns a connected client.
func (f *globalFlags) connect(ctx context.Context) (*Config, *discordrpc.Client, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.ClientID == "" {
		return nil, nil, errors.New("client id is required: set --client-id, client_id or DISCORDRPC_CLIENT_ID")
	}

	logger, err := cfg.Logger.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	client, err := discordrpc.New(
		discordrpc.TransportOption(cfg.Transport),
		discordrpc.LoggerOption(logger),
		discordrpc.ConnectTimeoutOption(cfg.ConnectTimeout),
		discordrpc.OriginOption(cfg.Origin),
	)
	if err != nil {
		return nil, nil, err
	}

	if err := client.Connect(ctx, cfg.ClientID); err != nil {
		return nil, nil, errors.Wrap(err, "connect to discord")
	}
	return cfg, client, nil
}
