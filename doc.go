// Package socialnet provides a client for the social-graph service over a single
// authenticated WebSocket RPC session.
//
// The library opens one WebSocket connection, authenticates it, opens the
// "social" port on the RPC session, and exposes every remote method as a plain
// Go call. Responses are Response Envelopes; every one of them is translated
// into either the success payload or a typed error before it reaches the caller.
//
// # Architecture
//
//	Transport ──► Authenticator ──► Session bootstrap ──► Call / Streaming adapters
//	                                                             │
//	                                                             ▼
//	                                                      ProcessErrors
//
// The Transport owns the socket and exposes connect, message, error and close
// events. The Authenticator produces the credential: a synapse bearer token
// fetched over HTTP before the socket opens (legacy contract), or a signed
// header frame sent in-band right after connect (v2 contract). The session
// bootstrap drives the RPC runtime handshake, opens the port and loads the
// service exactly once.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/socialnet/social"
//	)
//
//	identity, _ := social.NewIdentity(accountKey, 24*time.Hour)
//	client := social.New(social.NewConfig("wss://rpc-social.example.org", identity))
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	status, err := client.GetFriendshipStatus(ctx, "0xabc...")
//
// # Streams
//
// Subscriptions return a Stream that is pulled one element at a time. The
// server does not send the next element before the previous one was pulled:
//
//	updates, _ := client.SubscribeToFriendConnectivityUpdates(ctx)
//	for update, err := range socialnet.All(ctx, updates) {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(update.Friend.Address, update.Status)
//	}
//
// # Errors
//
// Remote errors are *BadRequestError, *ForbiddenError, *InternalServerError,
// *TooManyRequestsError and *UnauthorizedError; all of them match ErrRemote
// with errors.Is. Login failures are *AuthenticationError and socket failures
// are *TransportError. Nothing is retried internally.
//
// # Important
//
//   - A client is single-use: after Disconnect or a failed Connect, build a new one
//   - Calls issued before Connect returns fail with ErrSessionNotReady
//   - No timeouts are enforced internally; bound calls with the context
package socialnet
