// wsrpc is a command-line client for JSON-RPC nodes reachable over WebSocket.
//
// Usage:
//
//	wsrpc --endpoint ws://127.0.0.1:8080/json_rpc call get_info
//	wsrpc --endpoint ws://127.0.0.1:8080/json_rpc call get_block_at_topoheight '{"topoheight":10}'
//	wsrpc --config node.toml listen new_block transaction_added
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
