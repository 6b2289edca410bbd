// Integration test against a live JSON-RPC node.
//
// Prerequisites:
//   - A node serving JSON-RPC over WebSocket that implements get_version,
//     subscribe and unsubscribe, and emits new_block notifications.
//
// Usage:
//
//	WSRPC_ENDPOINT=ws://127.0.0.1:8080/json_rpc go run ./cmd/integration-test
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	wsrpc "github.com/wsrpc/go-sdk"
)

const defaultEndpoint = "ws://127.0.0.1:8080/json_rpc"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()
	passed := 0
	failed := 0

	fmt.Println("=== wsrpc Integration Test ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := wsrpc.DefaultConfig()
	cfg.Endpoint = defaultEndpoint
	cfg.Timeout = 10 * time.Second
	cfg.UnsubscribeGracePeriod = 500 * time.Millisecond

	client, err := wsrpc.NewClient(cfg, wsrpc.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("FAIL: NewClient")
	}
	defer client.Close()

	// --- Test 1: Connect ---
	fmt.Println("[Test 1] Connect to node...")
	if err := client.Connect(ctx, os.Getenv("WSRPC_ENDPOINT")); err != nil {
		logger.Fatal().Err(err).Msg("FAIL: Connect")
	}
	fmt.Printf("  PASS: connected to %s\n", client.Endpoint())
	passed++

	// --- Test 2: Call ---
	fmt.Println("[Test 2] Call get_version...")
	resp, err := client.Call(ctx, "get_version", nil)
	switch {
	case err != nil:
		fmt.Printf("  FAIL: %v\n", err)
		failed++
	case resp.ID == nil || *resp.ID != 0:
		fmt.Printf("  FAIL: first call should carry id 0, got %v\n", resp.ID)
		failed++
	default:
		fmt.Printf("  PASS: version=%s\n", string(resp.Result))
		passed++
	}

	// --- Test 3: Unknown method surfaces a remote error ---
	fmt.Println("[Test 3] Call an unknown method...")
	_, err = client.Call(ctx, "wsrpc_no_such_method", nil)
	var rpcErr *wsrpc.RPCError
	if errors.As(err, &rpcErr) {
		fmt.Printf("  PASS: remote error %d %q\n", rpcErr.Code, rpcErr.Message)
		passed++
	} else {
		fmt.Printf("  FAIL: expected *RPCError, got %v\n", err)
		failed++
	}

	// --- Test 4: Subscribe and receive one notification ---
	fmt.Println("[Test 4] Subscribe to new_block...")
	blocks := make(chan json.RawMessage, 1)
	unsubscribe, err := client.ListenEvent(ctx, "new_block", func(data json.RawMessage, err error) {
		if err != nil {
			return
		}
		select {
		case blocks <- data:
		default:
		}
	})
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		failed++
	} else {
		select {
		case block := <-blocks:
			fmt.Printf("  PASS: received block (%d bytes)\n", len(block))
			passed++
		case <-time.After(45 * time.Second):
			fmt.Println("  SKIP: no block within 45s; the node may not be producing blocks.")
		}
		unsubscribe()
	}

	// --- Test 5: Connection state ---
	fmt.Println("[Test 5] Connection state...")
	st := client.ConnectionState()
	if st.Connected && !st.Reconnecting && st.Attempts == 0 {
		fmt.Printf("  PASS: %+v\n", st)
		passed++
	} else {
		fmt.Printf("  FAIL: unexpected state %+v\n", st)
		failed++
	}

	// --- Summary ---
	fmt.Println()
	fmt.Println("=== Results ===")
	fmt.Printf("  Passed: %d\n", passed)
	fmt.Printf("  Failed: %d\n", failed)

	if failed > 0 {
		os.Exit(1)
	}
}
