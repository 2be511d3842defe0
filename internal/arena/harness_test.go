package arena

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/broadcast"
	"github.com/arenachess/backend/internal/registry"
)

// fakeConn records every message fanned out to one client.
type fakeConn struct {
	mu   sync.Mutex
	msgs []any
}

func (f *fakeConn) Send(msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) all() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func msgsOf[T any](f *fakeConn) []T {
	var out []T
	for _, m := range f.all() {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastOf[T any](f *fakeConn) (T, bool) {
	ms := msgsOf[T](f)
	if len(ms) == 0 {
		var zero T
		return zero, false
	}
	return ms[len(ms)-1], true
}

type fixture struct {
	t   *testing.T
	dir *Directory
	reg *registry.Registry
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	log := zap.NewNop()
	reg := registry.New(log)
	bc := broadcast.New(reg, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &fixture{
		t:   t,
		dir: NewDirectory(ctx, cfg, reg, bc, log),
		reg: reg,
	}
}

// connect registers a fake connection and names it.
func (f *fixture) connect(name string) (string, *fakeConn) {
	f.t.Helper()
	c := &fakeConn{}
	client := f.reg.Register(c)
	require.NoError(f.t, f.dir.SetName(client.ID, name))
	return client.ID, c
}
