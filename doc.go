// Package wsrpc provides a resilient JSON-RPC 2.0 client transport over a
// single WebSocket connection.
//
// The client multiplexes concurrent calls over one socket, fans out
// server-pushed events to registered listeners and recovers from connection
// loss on its own:
//
//   - Call: request/response with integer id correlation and per-call timeout
//   - ListenEvent: subscribe to a named server event; the returned
//     Unsubscribe removes the listener after a short grace period
//   - ConnectionState: poll whether the client is connected or retrying
//
// Basic usage:
//
//	client, err := wsrpc.NewClient(wsrpc.DefaultConfig(),
//	    wsrpc.WithErrorHandler(wsrpc.LogErrors(logger)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Connect(ctx, "ws://127.0.0.1:8080/json_rpc"); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var version string
//	if err := client.CallResult(ctx, "get_version", nil, &version); err != nil {
//	    log.Fatal(err)
//	}
//
//	unsubscribe, err := client.ListenEvent(ctx, "new_block",
//	    func(data json.RawMessage, err error) {
//	        // handle event
//	    },
//	)
//
// # Reconnection and subscriptions
//
// When an established connection drops, the client reconnects with
// exponential backoff and re-subscribes every event that still has listeners,
// so listeners keep receiving events without calling ListenEvent again.
//
// Calling Connect yourself is a fresh session: connecting to a different
// endpoint, or manually reconnecting to the same one, clears every
// subscription and its listeners. Callers that depend on their listeners
// surviving a drop must leave recovery to the automatic reconnect path.
package wsrpc
