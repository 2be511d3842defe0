// Package registry tracks the identity bound to each live connection.
// Identity and transport are decoupled: the registry keys clients by a
// generated id and talks to the wire only through the Sender interface,
// so tests can plug in fakes.
package registry

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers one outbound message to a connection. It must not
// block indefinitely; implementations are expected to buffer and drop.
type Sender interface {
	Send(msg any) error
}

// Client is a snapshot of one connection's identity.
type Client struct {
	ID     string
	Name   string
	GameID string
}

type entry struct {
	Client
	conn Sender
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]*entry
	log     *zap.Logger
}

func New(log *zap.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*entry),
		log:     log,
	}
}

// Register creates a new client for a connection, with a generated id
// and a placeholder display name.
func (r *Registry) Register(conn Sender) Client {
	c := Client{
		ID:   uuid.NewString(),
		Name: fmt.Sprintf("Player%03d", rand.Intn(1000)),
	}
	r.mu.Lock()
	r.clients[c.ID] = &entry{Client: c, conn: conn}
	r.mu.Unlock()
	return c
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[id]
	if !ok {
		return Client{}, false
	}
	return e.Client, true
}

func (r *Registry) SetName(id, name string) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return Client{}, false
	}
	e.Name = name
	return e.Client, true
}

func (r *Registry) SetGame(id, gameID string) {
	r.mu.Lock()
	if e, ok := r.clients[id]; ok {
		e.GameID = gameID
	}
	r.mu.Unlock()
}

// ClearGame resets the game association of every client bound to the
// given game, once that game no longer exists.
func (r *Registry) ClearGame(gameID string) {
	r.mu.Lock()
	for _, e := range r.clients {
		if e.GameID == gameID {
			e.GameID = ""
		}
	}
	r.mu.Unlock()
}

// FindByName returns the first connected client with the given display
// name. Tournament seats are bound by name, not connection id, so this
// is how a roster entry is matched back to a live connection.
func (r *Registry) FindByName(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.clients {
		if e.Name == name {
			return e.Client, true
		}
	}
	return Client{}, false
}

func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.clients))
	for _, e := range r.clients {
		out = append(out, e.Client)
	}
	return out
}

// Send delivers a message to one client. Failures are logged and
// swallowed; a dead connection must never abort the caller's fan-out.
func (r *Registry) Send(id string, msg any) {
	r.mu.RLock()
	e, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := e.conn.Send(msg); err != nil {
		r.log.Warn("send failed", zap.String("client_id", id), zap.Error(err))
	}
}
