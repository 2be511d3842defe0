package arena

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arenachess/backend/pkg/types"
)

func TestCasualGameFlowUntimed(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, bConn := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, ok := lastOf[types.GameCreated](aConn)
	require.True(t, ok)
	require.Equal(t, "w", created.Color)
	require.Equal(t, "none", created.TimeMode)

	require.NoError(t, f.dir.JoinGame(bID, created.GameID))

	aStart, ok := lastOf[types.GameStart](aConn)
	require.True(t, ok)
	require.Equal(t, "w", aStart.Color)
	require.Equal(t, "alice", aStart.WhitePlayer)
	require.Equal(t, "bob", aStart.BlackPlayer)
	require.Nil(t, aStart.WhiteTime)

	bStart, ok := lastOf[types.GameStart](bConn)
	require.True(t, ok)
	require.Equal(t, "b", bStart.Color)

	require.NoError(t, f.dir.Move(aID, created.GameID, "w", types.MoveSpec{From: "e2", To: "e4"}))
	require.NoError(t, f.dir.Move(bID, created.GameID, "b", types.MoveSpec{From: "e7", To: "e5"}))

	aMoves := msgsOf[types.MovePlayed](aConn)
	require.Len(t, aMoves, 2)
	require.True(t, strings.Contains(aMoves[1].FEN, " w "), "white to move after black's reply")
	require.Len(t, msgsOf[types.MovePlayed](bConn), 2)

	// Untimed games never emit clock updates.
	require.Empty(t, msgsOf[types.TimerUpdate](aConn))

	require.NoError(t, f.dir.Forfeit(bID, created.GameID))
	for _, conn := range []*fakeConn{aConn, bConn} {
		over, ok := lastOf[types.GameOver](conn)
		require.True(t, ok)
		require.Equal(t, "alice wins (forfeit)", over.Result)
		require.Equal(t, "alice", over.Winner)
	}

	f.dir.FetchHistory(aID)
	hist, ok := lastOf[types.History](aConn)
	require.True(t, ok)
	require.Len(t, hist.Games, 1)
	require.Equal(t, []string{"alice", "bob"}, hist.Games[0].Players)

	f.dir.FetchLobby(aID)
	lobby, ok := lastOf[types.LobbyData](aConn)
	require.True(t, ok)
	require.Empty(t, lobby.Games)
}

func TestJoinFullGame(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, _ := f.connect("bob")
	cID, _ := f.connect("carol")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "b"))
	created, _ := lastOf[types.GameCreated](aConn)
	require.NoError(t, f.dir.JoinGame(bID, created.GameID))
	require.ErrorIs(t, f.dir.JoinGame(cID, created.GameID), ErrGameFull)
}

func TestTimedMoveChargesClock(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, bConn := f.connect("bob")

	tc := types.TimeControl{Minutes: 3, Increment: 2}
	require.NoError(t, f.dir.CreateGame(aID, tc, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	require.NoError(t, f.dir.JoinGame(bID, created.GameID))

	start, _ := lastOf[types.GameStart](bConn)
	require.NotNil(t, start.WhiteTime)
	require.Equal(t, 180, *start.WhiteTime)

	require.NoError(t, f.dir.Move(aID, created.GameID, "w", types.MoveSpec{From: "e2", To: "e4"}))

	// Near-instant move: base minus sub-second elapsed plus increment
	// rounds up to base+increment.
	var white []types.TimerUpdate
	for _, tu := range msgsOf[types.TimerUpdate](bConn) {
		if tu.Player == "white" {
			white = append(white, tu)
		}
	}
	require.NotEmpty(t, white)
	require.Equal(t, 182, white[len(white)-1].TimeLeft)
}

func TestMoveValidation(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, _ := f.connect("bob")
	cID, _ := f.connect("carol")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	id := created.GameID
	require.NoError(t, f.dir.JoinGame(bID, id))

	// Black cannot open.
	require.ErrorIs(t, f.dir.Move(bID, id, "b", types.MoveSpec{From: "e7", To: "e5"}), ErrNotYourTurn)
	// Claimed color must match the seat.
	require.ErrorIs(t, f.dir.Move(aID, id, "b", types.MoveSpec{From: "e2", To: "e4"}), ErrNotYourTurn)
	// Outsiders are not seated.
	require.ErrorIs(t, f.dir.Move(cID, id, "w", types.MoveSpec{From: "e2", To: "e4"}), ErrNotSeated)

	// An illegal move is rejected and snaps the mover back with a fresh
	// snapshot of the authoritative position.
	before := len(msgsOf[types.GameStart](aConn))
	require.ErrorIs(t, f.dir.Move(aID, id, "w", types.MoveSpec{From: "e2", To: "e5"}), ErrInvalidMove)
	require.Len(t, msgsOf[types.GameStart](aConn), before+1)
}

func TestCheckmateEndsGame(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, bConn := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	id := created.GameID
	require.NoError(t, f.dir.JoinGame(bID, id))

	// Fool's mate.
	require.NoError(t, f.dir.Move(aID, id, "w", types.MoveSpec{From: "f2", To: "f3"}))
	require.NoError(t, f.dir.Move(bID, id, "b", types.MoveSpec{From: "e7", To: "e5"}))
	require.NoError(t, f.dir.Move(aID, id, "w", types.MoveSpec{From: "g2", To: "g4"}))
	require.NoError(t, f.dir.Move(bID, id, "b", types.MoveSpec{From: "d8", To: "h4"}))

	over, ok := lastOf[types.GameOver](bConn)
	require.True(t, ok)
	require.Equal(t, "bob wins (checkmate)", over.Result)
	require.Equal(t, "bob", over.Winner)

	// Finished games reject further moves.
	require.ErrorIs(t, f.dir.Move(aID, id, "w", types.MoveSpec{From: "a2", To: "a3"}), ErrInvalidGame)
}

func TestDeleteGame(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, _ := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)

	require.ErrorIs(t, f.dir.DeleteGame(bID, created.GameID), ErrNotAuthorized)
	require.NoError(t, f.dir.DeleteGame(aID, created.GameID))
	require.ErrorIs(t, f.dir.JoinGame(bID, created.GameID), ErrGameNotFound)
}

func TestDisconnectForfeitsActiveGame(t *testing.T) {
	f := newFixture(t, Config{})
	aID, aConn := f.connect("alice")
	bID, _ := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	require.NoError(t, f.dir.JoinGame(bID, created.GameID))

	f.dir.Disconnect(bID)

	require.Eventually(t, func() bool {
		over, ok := lastOf[types.GameOver](aConn)
		return ok && over.Result == "alice wins (opponent disconnected)"
	}, time.Second, 5*time.Millisecond)
	_, gotNotice := lastOf[types.OpponentDisconnected](aConn)
	require.True(t, gotNotice)
}

func TestRejoinWithinGraceVoidsForfeit(t *testing.T) {
	f := newFixture(t, Config{DisconnectGrace: 150 * time.Millisecond})
	aID, aConn := f.connect("alice")
	bID, bConn := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	id := created.GameID
	require.NoError(t, f.dir.JoinGame(bID, id))

	f.dir.Disconnect(aID)

	// A fresh connection reclaims the seat by display name.
	c2 := &fakeConn{}
	again := f.reg.Register(c2)
	require.NoError(t, f.dir.RejoinGame(again.ID, id, "alice"))

	snap, ok := lastOf[types.GameStart](c2)
	require.True(t, ok)
	require.Equal(t, "w", snap.Color)
	require.Equal(t, "alice", snap.WhitePlayer)

	// The grace timer fires against the stale connection id and must not
	// forfeit the rebound seat.
	time.Sleep(250 * time.Millisecond)
	require.Empty(t, msgsOf[types.GameOver](bConn))

	require.NoError(t, f.dir.Move(again.ID, id, "w", types.MoveSpec{From: "e2", To: "e4"}))
}

func TestRejoinTimedGameRunsExactlyOneClock(t *testing.T) {
	f := newFixture(t, Config{DisconnectGrace: time.Minute})
	aID, aConn := f.connect("alice")
	bID, _ := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{Minutes: 1}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	id := created.GameID
	require.NoError(t, f.dir.JoinGame(bID, id))

	// Both seats drop and reconnect back-to-back. Each rejoin calls for
	// the clock; only activation may have started one.
	f.dir.Disconnect(aID)
	f.dir.Disconnect(bID)

	c2 := &fakeConn{}
	alice2 := f.reg.Register(c2)
	require.NoError(t, f.dir.RejoinGame(alice2.ID, id, "alice"))
	c3 := &fakeConn{}
	bob2 := f.reg.Register(c3)
	require.NoError(t, f.dir.RejoinGame(bob2.ID, id, "bob"))

	g := f.dir.game(id)
	require.NotNil(t, g)
	v := g.view()
	require.True(t, v.Active)
	require.False(t, v.Finished)
	require.Equal(t, 1, v.ClockStarts)

	// The game plays on under the single timer loop.
	require.NoError(t, f.dir.Move(alice2.ID, id, "w", types.MoveSpec{From: "e2", To: "e4"}))
}

func TestRejoinRejectsUnknownName(t *testing.T) {
	f := newFixture(t, Config{DisconnectGrace: time.Minute})
	aID, aConn := f.connect("alice")
	bID, _ := f.connect("bob")

	require.NoError(t, f.dir.CreateGame(aID, types.TimeControl{NoTime: true}, "w"))
	created, _ := lastOf[types.GameCreated](aConn)
	require.NoError(t, f.dir.JoinGame(bID, created.GameID))

	c2 := &fakeConn{}
	stranger := f.reg.Register(c2)
	require.ErrorIs(t, f.dir.RejoinGame(stranger.ID, created.GameID, "zed"), ErrNotSeated)
}

func TestTimeoutRecordsSingleOutcome(t *testing.T) {
	f := newFixture(t, Config{TickInterval: 5 * time.Millisecond})
	aID, aConn := f.connect("alice")
	bID, bConn := f.connect("bob")

	g := newGameSession(f.dir, gameParams{ID: "g-timeout", TimeControl: types.TimeControl{Minutes: 1}})
	g.white = seatState{clientID: aID, name: "alice", connected: true}
	g.black = seatState{clientID: bID, name: "bob", connected: true}
	g.whiteTime = 30 * time.Millisecond
	g.playerCount.Store(2)
	g.active = true
	g.turnStarted = time.Now()
	g.startClock()
	f.dir.mu.Lock()
	f.dir.games[g.id] = g
	f.dir.mu.Unlock()
	g.start()

	require.Eventually(t, func() bool {
		over, ok := lastOf[types.GameOver](bConn)
		return ok && over.Result == "bob wins (timeout)"
	}, time.Second, 5*time.Millisecond)

	// Ticks keep arriving after expiry; the terminal path must fire once.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, msgsOf[types.GameOver](aConn), 1)
	require.Len(t, msgsOf[types.GameOver](bConn), 1)
	require.True(t, g.view().Finished)
}
