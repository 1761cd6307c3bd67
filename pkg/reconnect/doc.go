// Package reconnect lets a disconnected client resume its session via a
// one-time token.
//
// When an authenticated connection is torn down, the session layer snapshots
// its identity and subscriptions into the store and hands the token to the
// client (or keeps it from an earlier get_reconnection_token request). A
// reconnecting client presents the token during the handshake; Resume
// redeems it exactly once, atomically deleting the mapping so replays always
// miss. Tokens expire after a fixed TTL and a background sweep purges stale
// entries.
//
//	store := reconnect.New(reconnect.WithTTL(5 * time.Minute))
//	go store.Start(ctx) // or g.Go(store.Run(ctx))
//
//	token, err := store.Issue(connID, subjectID, channels, nil)
//	...
//	snapshot, ok := store.Resume(token, newConnID)
package reconnect
