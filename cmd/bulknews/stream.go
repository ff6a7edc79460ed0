// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/stream"
	"github.com/pdiddy/bulknews/pkg/types"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Manage and consume streams of matching articles",
	Long: `Stream manages server-side streams: create one from a query or from a
finished extraction, inspect or delete it, manage its subscriptions, and
listen for article events over Pub/Sub.`,
}

func streamConfig(cmd *cobra.Command) (types.StreamConfig, error) {
	api, err := apiConfig(cmd)
	if err != nil {
		return types.StreamConfig{}, err
	}
	cfg := types.StreamConfig{APIConfig: api}
	if f := cmd.Flags().Lookup("batch-size"); f != nil {
		cfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	return cfg, nil
}

func streamClient(cmd *cobra.Command) (*stream.Client, error) {
	cfg, err := streamConfig(cmd)
	if err != nil {
		return nil, err
	}
	return stream.NewClient(newHTTPClient(cfg.APIConfig), cfg), nil
}

func printStream(s *stream.Stream) {
	fmt.Fprintf(os.Stdout, "stream %s\n", s.ID)
	fmt.Fprintf(os.Stdout, "status: %s\n", s.JobStatus)
	for _, sub := range s.Subscriptions {
		fmt.Fprintf(os.Stdout, "subscription: %s\n", sub.ID)
	}
}

// --- create subcommand ---

var streamCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a stream from a query or a finished extraction",
	RunE:  runStreamCreate,
}

func runStreamCreate(cmd *cobra.Command, args []string) error {
	client, err := streamClient(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var s *stream.Stream
	snapshotID, _ := cmd.Flags().GetString("snapshot-id")
	if snapshotID != "" {
		s, err = client.CreateFromSnapshot(ctx, snapshotID)
	} else {
		q, qerr := buildQuery(cmd)
		if qerr != nil {
			return qerr
		}
		s, err = client.CreateFromQuery(ctx, q)
	}
	if err != nil {
		return err
	}

	printStream(s)
	return nil
}

// --- info subcommand ---

var streamInfoCmd = &cobra.Command{
	Use:   "info [stream-id]",
	Short: "Show a stream's status and subscriptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := streamClient(cmd)
		if err != nil {
			return err
		}
		s, err := client.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		printStream(s)
		return nil
	},
}

// --- delete subcommand ---

var streamDeleteCmd = &cobra.Command{
	Use:   "delete [stream-id]",
	Short: "Cancel a stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := streamClient(cmd)
		if err != nil {
			return err
		}
		s, err := client.Delete(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "stream %s: %s\n", s.ID, s.JobStatus)
		return nil
	},
}

// --- subscribe / unsubscribe subcommands ---

var streamSubscribeCmd = &cobra.Command{
	Use:   "subscribe [stream-id]",
	Short: "Add a subscription to a stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := streamClient(cmd)
		if err != nil {
			return err
		}
		sub, err := client.CreateSubscription(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, sub.ID)
		return nil
	},
}

var streamUnsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe [subscription-id]",
	Short: "Remove a subscription from its stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := streamClient(cmd)
		if err != nil {
			return err
		}
		streamID, err := stream.StreamIDOfSubscription(args[0])
		if err != nil {
			return err
		}
		return client.DeleteSubscription(context.Background(), streamID, args[0])
	},
}

// --- listen subcommand ---

var streamListenCmd = &cobra.Command{
	Use:   "listen [subscription-id]",
	Short: "Consume article events from a subscription",
	Long: `Listen pulls article events from the subscription's Pub/Sub topic using
credentials issued by the API, printing each article as a JSON line on
stdout. It stops after --max-messages events, or runs until interrupted
when --max-messages is 0.`,
	Args: cobra.ExactArgs(1),
	RunE: runStreamListen,
}

func runStreamListen(cmd *cobra.Command, args []string) error {
	client, err := streamClient(cmd)
	if err != nil {
		return err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	listener, err := client.NewListener(args[0], log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	handler := func(article types.Article, subscriptionID string) bool {
		if err := enc.Encode(article); err != nil {
			log.Error().Err(err).Msg("writing article")
			return false
		}
		return true
	}

	maxMessages, _ := cmd.Flags().GetInt("max-messages")
	if maxMessages > 0 {
		return listener.Listen(ctx, handler, maxMessages)
	}
	return listener.ListenAsync(ctx, handler)
}

func init() {
	addQueryFlags(streamCreateCmd)
	streamCreateCmd.Flags().String("snapshot-id", "", "create from a finished extraction instead of a query")

	streamListenCmd.Flags().Int("max-messages", 0, "stop after this many events (0 = run until interrupted)")
	streamListenCmd.Flags().Int("batch-size", 0, "maximum unacknowledged messages in flight (default 10)")

	streamCmd.AddCommand(streamCreateCmd)
	streamCmd.AddCommand(streamInfoCmd)
	streamCmd.AddCommand(streamDeleteCmd)
	streamCmd.AddCommand(streamSubscribeCmd)
	streamCmd.AddCommand(streamUnsubscribeCmd)
	streamCmd.AddCommand(streamListenCmd)
	rootCmd.AddCommand(streamCmd)
}
