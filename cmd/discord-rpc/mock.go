package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/discordrpc"
	"github.com/Zereker/discordrpc/rpctest"
)

func mockCmd(flags *globalFlags) *cobra.Command {
	var (
		dir      string
		index    int
		username string
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a fake Discord client on the IPC socket",
		Long: `mock listens where the IPC transport looks for Discord and behaves like
the desktop client: it accepts the handshake, announces READY and
acknowledges every request, logging each one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger, err := cfg.Logger.NewLogger(os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := rpctest.NewIPCServer(dir, index, rpctest.ServerLoggerOption(logger))
			if err != nil {
				return err
			}
			defer srv.Close()

			discord := &rpctest.Discord{
				User: discordrpc.User{ID: "1", Username: username},
				Responder: func(req *discordrpc.Message) *discordrpc.Message {
					logger.Info("request", "cmd", req.Cmd, "evt", req.Evt, "nonce", req.Nonce)
					return rpctest.Echo(req)
				},
			}
			return ignoreCanceled(srv.Serve(ctx, discord))
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", filepath.Dir(discordrpc.IPCPath(0)), "directory of the IPC socket")
	fl.IntVar(&index, "index", 0, "IPC endpoint index")
	fl.StringVar(&username, "username", "mock", "username announced in READY")

	return cmd
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
