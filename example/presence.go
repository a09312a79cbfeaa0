package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zereker/discordrpc"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	clientID := os.Getenv("DISCORD_CLIENT_ID")
	if clientID == "" {
		logger.Error("DISCORD_CLIENT_ID is not set")
		os.Exit(1)
	}

	client, err := discordrpc.New(
		discordrpc.TransportOption("ipc"),
		discordrpc.LoggerOption(logger),
		discordrpc.EventHandlerOption(func(evt string, data json.RawMessage) {
			logger.Info("event", "evt", evt, "data", string(data))
		}),
	)
	if err != nil {
		logger.Error("create client failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := client.Connect(ctx, clientID); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected", "user", client.User().Username)

	// Join requests from friends arrive as ACTIVITY_JOIN_REQUEST dispatches.
	if _, err := client.Subscribe(ctx, discordrpc.EventActivityJoinRequest, nil, func(data json.RawMessage) {
		var req struct {
			User discordrpc.User `json:"user"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		go func() {
			if err := client.SendJoinInvite(ctx, req.User.ID); err != nil {
				logger.Warn("accept join request failed", "user", req.User.ID, "error", err)
			}
		}()
	}); err != nil {
		logger.Warn("subscribe failed", "error", err)
	}

	start := time.Now()
	if _, err := client.SetActivity(ctx, discordrpc.Activity{
		State:          "Exploring",
		Details:        "Example presence",
		StartTimestamp: start,
		PartyID:        "party-1",
		PartySize:      1,
		PartyMax:       4,
		JoinSecret:     "join-secret",
	}, 0); err != nil {
		logger.Error("set activity failed", "error", err)
	}

	<-ctx.Done()

	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = client.ClearActivity(shutdown, 0)
	_ = client.Destroy(shutdown)
	logger.Info("disconnected", "uptime", time.Since(start).Round(time.Second))
}
