package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zereker/discordrpc"
)

const shutdownTimeout = 5 * time.Second

func destroy(client *discordrpc.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = client.Destroy(ctx)
}

func presenceCmd(flags *globalFlags) *cobra.Command {
	var (
		act ActivityConfig
		pid int
	)

	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Set the rich presence and hold it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, client, err := flags.connect(ctx)
			if err != nil {
				return err
			}
			defer destroy(client)

			merged := cfg.Activity
			fl := cmd.Flags()
			if fl.Changed("state") {
				merged.State = act.State
			}
			if fl.Changed("details") {
				merged.Details = act.Details
			}
			if fl.Changed("large-image") {
				merged.LargeImageKey = act.LargeImageKey
			}
			if fl.Changed("large-text") {
				merged.LargeImageText = act.LargeImageText
			}
			if fl.Changed("small-image") {
				merged.SmallImageKey = act.SmallImageKey
			}
			if fl.Changed("small-text") {
				merged.SmallImageText = act.SmallImageText
			}
			if fl.Changed("timestamp") {
				merged.Timestamp = act.Timestamp
			}

			if _, err := client.SetActivity(ctx, merged.activity(time.Now()), pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "presence set for %s, press Ctrl+C to clear\n", userName(client.User()))

			<-ctx.Done()

			clearCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return client.ClearActivity(clearCtx, pid)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&act.State, "state", "", "activity state line")
	fl.StringVar(&act.Details, "details", "", "activity details line")
	fl.StringVar(&act.LargeImageKey, "large-image", "", "large image asset key")
	fl.StringVar(&act.LargeImageText, "large-text", "", "large image tooltip")
	fl.StringVar(&act.SmallImageKey, "small-image", "", "small image asset key")
	fl.StringVar(&act.SmallImageText, "small-text", "", "small image tooltip")
	fl.BoolVar(&act.Timestamp, "timestamp", false, "show elapsed time since start")
	fl.IntVar(&pid, "pid", 0, "process the presence belongs to (default: this process)")

	return cmd
}

func clearCmd(flags *globalFlags) *cobra.Command {
	var pid int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the rich presence of a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer destroy(client)

			return client.ClearActivity(cmd.Context(), pid)
		},
	}

	cmd.Flags().IntVar(&pid, "pid", 0, "process whose presence is cleared (default: this process)")
	return cmd
}

func pingCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect and print the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			_, client, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer destroy(client)

			if err := client.Ping(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected as %s in %s\n", userName(client.User()), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func userName(u *discordrpc.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
