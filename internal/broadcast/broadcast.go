// Package broadcast fans messages out to the connections interested in
// a game, a tournament roster, or the whole lobby. Delivery failures to
// one recipient never prevent delivery to the others.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/registry"
)

// Seat identifies one recipient of a game-scoped message and the color
// their copy should be annotated with.
type Seat struct {
	ClientID string
	Color    string // "w" | "b"
}

type Broadcaster struct {
	reg *registry.Registry
	log *zap.Logger
}

func New(reg *registry.Registry, log *zap.Logger) *Broadcaster {
	return &Broadcaster{reg: reg, log: log}
}

func (b *Broadcaster) ToClient(clientID string, msg any) {
	if clientID == "" {
		return
	}
	b.reg.Send(clientID, msg)
}

// ToSeats delivers a per-recipient copy built by the callback, which
// receives that seat's color. Unbound seats are skipped.
func (b *Broadcaster) ToSeats(seats []Seat, build func(color string) any) {
	for _, s := range seats {
		if s.ClientID == "" {
			continue
		}
		b.reg.Send(s.ClientID, build(s.Color))
	}
}

// ToNames sends an identical message to every connected client whose
// display name is in the given set.
func (b *Broadcaster) ToNames(names []string, msg any) {
	member := make(map[string]bool, len(names))
	for _, n := range names {
		member[n] = true
	}
	for _, c := range b.reg.All() {
		if member[c.Name] {
			b.reg.Send(c.ID, msg)
		}
	}
}

// ToAll sends a message to every connected client.
func (b *Broadcaster) ToAll(msg any) {
	for _, c := range b.reg.All() {
		b.reg.Send(c.ID, msg)
	}
}
