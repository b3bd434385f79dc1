// Package atasmt5 provides the client side of the ATAS to MT5 order bridge.
//
// The client keeps one long-lived WebSocket connection to a local relay and
// pushes trading actions over it as fire-and-forget JSON requests: open a
// position, close positions, query account state, manage symbol mappings.
// Inbound traffic is drained by a background loop and surfaced to a logging
// sink only; replies are never matched back to the requests that caused
// them.
//
// # Thread Safety
//
// [Client] is safe for concurrent use by multiple goroutines. Concurrent
// Sends are serialized through a single permit so frames are never
// interleaved on the wire. Connect never queues: while one connect attempt
// is in flight, others fail fast with [ErrConnectInProgress].
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	client := atasmt5.New("ws://localhost:8766")
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	err := client.Send(ctx, atasmt5.ActionOpenPosition, atasmt5.OpenPositionParams{
//	    Symbol:    "BTCUSDT",
//	    Volume:    0.1,
//	    OrderType: atasmt5.OrderTypeBuy,
//	})
//	if err != nil {
//	    log.Printf("send failed: %v", err)
//	}
//
// Send reports transmission success only. There is no reconnect policy: when
// [Client.IsConnected] turns false the caller decides whether to Connect
// again.
//
// # Observability
//
// Use [WithLogger], [WithOnSend], and [WithOnReceive] to observe traffic:
//
//	client := atasmt5.New(url,
//	    atasmt5.WithLogger(slog.Default()),
//	    atasmt5.WithOnReceive(func(text string) {
//	        log.Printf("relay: %s", text)
//	    }),
//	)
package atasmt5
