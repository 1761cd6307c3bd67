// Package permission provides a static role-to-channel access table for the
// event hub.
//
// A Gate is built once from a Table and never mutated, so checks require no
// synchronization and cannot fail: unknown roles and channels simply resolve
// to denied access. Connections without an authenticated role fall back to
// the "anonymous" role.
//
// Usage:
//
//	gate := permission.New(permission.Table{
//		"anonymous": {
//			"public.announcements": {Subscribe: true},
//		},
//		"trader": {
//			"public.announcements": {Subscribe: true},
//			"market.ticks":         {Subscribe: true},
//			"orders.own":           {Subscribe: true, Broadcast: true},
//		},
//	})
//
//	if !gate.CanSubscribe("market.ticks", role) {
//		// report the channel as denied
//	}
package permission
