package permission

import "sort"

// DefaultRole is assumed for connections that never authenticated or
// presented an unknown role.
const DefaultRole = "anonymous"

// Access describes what a role may do within a single channel.
type Access struct {
	Subscribe bool
	Broadcast bool
}

// Table maps role -> channel -> access rights. It is the raw form a gate is
// built from, typically assembled once at startup.
type Table map[string]map[string]Access

// Gate answers channel access questions for the event hub. It is immutable
// after construction and safe for concurrent use without locking, which keeps
// it off the list of contention points on the inbound hot path.
//
// All lookups are total: an unknown role or channel resolves to "denied"
// rather than an error, so a malformed subscribe request can never crash the
// receive loop.
type Gate struct {
	table Table
}

// New builds a gate from the given table. The table is deep-copied so later
// mutation of the caller's maps cannot bypass the immutability guarantee.
func New(table Table) *Gate {
	copied := make(Table, len(table))
	for role, channels := range table {
		rc := make(map[string]Access, len(channels))
		for channel, access := range channels {
			rc[channel] = access
		}
		copied[role] = rc
	}
	return &Gate{table: copied}
}

// CanSubscribe reports whether role may subscribe to channel. An empty role
// is treated as DefaultRole.
func (g *Gate) CanSubscribe(channel, role string) bool {
	return g.access(channel, role).Subscribe
}

// CanBroadcast reports whether role may broadcast into channel. An empty role
// is treated as DefaultRole.
func (g *Gate) CanBroadcast(channel, role string) bool {
	return g.access(channel, role).Broadcast
}

// AccessibleChannels returns the sorted list of channels the role has any
// access to (subscribe or broadcast). The result is a fresh slice owned by
// the caller.
func (g *Gate) AccessibleChannels(role string) []string {
	channels := g.table[normalizeRole(role)]
	result := make([]string, 0, len(channels))
	for channel, access := range channels {
		if access.Subscribe || access.Broadcast {
			result = append(result, channel)
		}
	}
	sort.Strings(result)
	return result
}

// Roles returns the sorted list of roles known to the gate.
func (g *Gate) Roles() []string {
	roles := make([]string, 0, len(g.table))
	for role := range g.table {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func (g *Gate) access(channel, role string) Access {
	channels, ok := g.table[normalizeRole(role)]
	if !ok {
		return Access{}
	}
	return channels[channel]
}

func normalizeRole(role string) string {
	if role == "" {
		return DefaultRole
	}
	return role
}
