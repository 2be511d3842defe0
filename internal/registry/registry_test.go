package registry

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingConn struct {
	msgs []any
	err  error
}

func (c *recordingConn) Send(msg any) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestRegisterAssignsPlaceholderName(t *testing.T) {
	r := New(zap.NewNop())
	c := r.Register(&recordingConn{})
	require.NotEmpty(t, c.ID)
	require.Regexp(t, regexp.MustCompile(`^Player\d{3}$`), c.Name)
}

func TestFindByName(t *testing.T) {
	r := New(zap.NewNop())
	c := r.Register(&recordingConn{})
	_, ok := r.SetName(c.ID, "alice")
	require.True(t, ok)

	got, ok := r.FindByName("alice")
	require.True(t, ok)
	require.Equal(t, c.ID, got.ID)

	_, ok = r.FindByName("nobody")
	require.False(t, ok)
}

func TestSendSwallowsConnFailure(t *testing.T) {
	r := New(zap.NewNop())
	bad := r.Register(&recordingConn{err: errors.New("broken pipe")})
	good := &recordingConn{}
	ok := r.Register(good)

	r.Send(bad.ID, "hello")
	r.Send(ok.ID, "hello")
	require.Equal(t, []any{"hello"}, good.msgs)
}

func TestClearGameResetsOnlyMatchingClients(t *testing.T) {
	r := New(zap.NewNop())
	a := r.Register(&recordingConn{})
	b := r.Register(&recordingConn{})
	r.SetGame(a.ID, "g1")
	r.SetGame(b.ID, "g2")

	r.ClearGame("g1")

	got, _ := r.Get(a.ID)
	require.Empty(t, got.GameID)
	got, _ = r.Get(b.ID)
	require.Equal(t, "g2", got.GameID)
}

func TestUnregisterForgetsClient(t *testing.T) {
	r := New(zap.NewNop())
	c := r.Register(&recordingConn{})
	r.Unregister(c.ID)
	_, ok := r.Get(c.ID)
	require.False(t, ok)
}
