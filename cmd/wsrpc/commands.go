package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wsrpc "github.com/wsrpc/go-sdk"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Call a method and print its result",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params any
		if len(args) == 2 {
			raw := json.RawMessage(args[1])
			if !json.Valid(raw) {
				return fmt.Errorf("params are not valid JSON: %s", args[1])
			}
			params = raw
		}

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Call(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}
		return printJSON(resp.Result)
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen <event>...",
	Short: "Print notifications for events until interrupted",
	Long: `listen subscribes to each event and prints one JSON line per notification.
The subscriptions are replayed when the connection is re-established.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, logger, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		client.OnDisconnect(func(err error) {
			logger.Warn().Err(err).Msg("disconnected, waiting for reconnect")
		})
		client.OnReconnect(func() {
			logger.Info().Str("endpoint", client.Endpoint()).Msg("reconnected")
		})

		for _, name := range args {
			event := name
			_, err := client.ListenEvent(cmd.Context(), event, func(data json.RawMessage, err error) {
				if err != nil {
					logger.Error().Err(err).Str("event", event).Msg("event error")
					return
				}
				line, _ := json.Marshal(struct {
					Event string          `json:"event"`
					Data  json.RawMessage `json:"data"`
				}{event, data})
				fmt.Println(string(line))
			})
			if err != nil {
				return err
			}
		}

		<-cmd.Context().Done()
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Connect and print the connection state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		st := client.ConnectionState()
		return printJSON(struct {
			Endpoint string                `json:"endpoint"`
			State    wsrpc.ConnectionState `json:"state"`
		}{client.Endpoint(), st})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
