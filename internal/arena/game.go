package arena

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/broadcast"
	"github.com/arenachess/backend/internal/clock"
	"github.com/arenachess/backend/internal/rules"
	"github.com/arenachess/backend/pkg/types"
)

// gameMsg is the closed set of inputs a game session processes. All
// session state is owned by the session's goroutine; everything else
// talks to it through these messages.
type gameMsg interface{ isGameMsg() }

type joinSeat struct {
	ClientID string
	Name     string
	Reply    chan error
}

type rejoinSeat struct {
	ClientID string
	Name     string
	Reply    chan error
}

type playMove struct {
	ClientID string
	Claimed  string // color the client believes it is playing
	Move     types.MoveSpec
	Reply    chan error
}

type forfeitGame struct {
	ClientID string
	Reply    chan error
}

type deleteGame struct {
	ClientID string
	Reply    chan error
}

type setSeatName struct {
	ClientID string
	Name     string
}

type seatDropped struct {
	ClientID string
}

type graceExpired struct {
	ClientID string
	Color    string
}

type cancelGame struct {
	Result string
}

type getGameView struct {
	Reply chan GameView
}

func (joinSeat) isGameMsg()     {}
func (rejoinSeat) isGameMsg()   {}
func (playMove) isGameMsg()     {}
func (forfeitGame) isGameMsg()  {}
func (deleteGame) isGameMsg()   {}
func (setSeatName) isGameMsg()  {}
func (seatDropped) isGameMsg()  {}
func (graceExpired) isGameMsg() {}
func (cancelGame) isGameMsg()   {}
func (getGameView) isGameMsg()  {}

// GameView is a race-free copy of session state for tests and debugging.
type GameView struct {
	ID           string
	FEN          string
	Turn         string
	Active       bool
	Finished     bool
	WhiteID      string
	WhiteName    string
	BlackID      string
	BlackName    string
	WhiteTime    time.Duration
	BlackTime    time.Duration
	TournamentID string
	Round        int
	ClockStarts  int
}

// Finished describes a concluded game for history and tournament
// bookkeeping.
type Finished struct {
	GameID       string
	TournamentID string
	Round        int
	White        string
	Black        string
	Result       string // human-readable
	Score        string // "1-0" | "0-1" | "0.5-0.5"
	Winner       string
}

type seatState struct {
	clientID  string
	name      string
	connected bool
}

// GameSession owns one game's mutable state: position, clocks, seats
// and the timer loop. A single goroutine serializes every mutation, so
// a move racing a timeout tick resolves first-committer-wins.
type GameSession struct {
	id           string
	creator      string
	creatorColor string
	tournamentID string
	round        int

	tc        types.TimeControl
	pos       *rules.Position
	white     seatState
	black     seatState
	whiteTime time.Duration
	blackTime time.Duration

	active      bool
	finished    bool
	turnStarted time.Time
	lastWhite   int // last broadcast display-seconds, throttles timerUpdate
	lastBlack   int

	playerCount atomic.Int32

	inbox       chan gameMsg
	ctx         context.Context
	cancel      context.CancelFunc
	ticker      *time.Ticker
	clockStarts int

	dir *Directory
	bc  *broadcast.Broadcaster
	log *zap.Logger
}

type gameParams struct {
	ID           string
	TimeControl  types.TimeControl
	Creator      string
	CreatorColor string
	TournamentID string
	Round        int
}

func newGameSession(d *Directory, p gameParams) *GameSession {
	g := &GameSession{
		id:           p.ID,
		creator:      p.Creator,
		creatorColor: p.CreatorColor,
		tournamentID: p.TournamentID,
		round:        p.Round,
		tc:           p.TimeControl,
		pos:          rules.NewPosition(),
		inbox:        make(chan gameMsg, 64),
		dir:          d,
		bc:           d.bc,
		log:          d.log.With(zap.String("game_id", p.ID)),
	}
	g.ctx, g.cancel = context.WithCancel(d.ctx)
	if !g.tc.NoTime {
		base := time.Duration(g.tc.Minutes) * time.Minute
		g.whiteTime, g.blackTime = base, base
	}
	return g
}

func (g *GameSession) start() {
	go g.loop()
}

func (g *GameSession) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.stopTicker()
			return
		case <-g.tickC():
			g.tick()
		case m := <-g.inbox:
			g.handle(m)
		}
	}
}

// post hands a message to the session goroutine; it fails once the
// session has terminated so callers never block on a dead game.
func (g *GameSession) post(m gameMsg) bool {
	select {
	case g.inbox <- m:
		return true
	case <-g.ctx.Done():
		return false
	}
}

func (g *GameSession) ask(m gameMsg, reply chan error) error {
	if !g.post(m) {
		return ErrInvalidGame
	}
	select {
	case err := <-reply:
		return err
	case <-g.ctx.Done():
		return ErrInvalidGame
	}
}

func (g *GameSession) view() GameView {
	reply := make(chan GameView, 1)
	if !g.post(getGameView{Reply: reply}) {
		return GameView{ID: g.id, Finished: true}
	}
	select {
	case v := <-reply:
		return v
	case <-g.ctx.Done():
		return GameView{ID: g.id, Finished: true}
	}
}

func (g *GameSession) handle(m gameMsg) {
	switch msg := m.(type) {
	case joinSeat:
		msg.Reply <- g.handleJoin(msg)
	case rejoinSeat:
		msg.Reply <- g.handleRejoin(msg)
	case playMove:
		msg.Reply <- g.handleMove(msg)
	case forfeitGame:
		msg.Reply <- g.handleForfeit(msg)
	case deleteGame:
		msg.Reply <- g.handleDelete(msg)
	case setSeatName:
		g.handleRename(msg)
	case seatDropped:
		g.handleDrop(msg)
	case graceExpired:
		g.handleGraceExpired(msg)
	case cancelGame:
		g.terminate(msg.Result, "", "", false)
	case getGameView:
		msg.Reply <- GameView{
			ID:           g.id,
			FEN:          g.pos.FEN(),
			Turn:         g.pos.SideToMove(),
			Active:       g.active,
			Finished:     g.finished,
			WhiteID:      g.white.clientID,
			WhiteName:    g.white.name,
			BlackID:      g.black.clientID,
			BlackName:    g.black.name,
			WhiteTime:    g.whiteTime,
			BlackTime:    g.blackTime,
			TournamentID: g.tournamentID,
			Round:        g.round,
			ClockStarts:  g.clockStarts,
		}
	}
}

func (g *GameSession) handleJoin(msg joinSeat) error {
	if g.finished {
		return ErrInvalidGame
	}
	if g.tournamentID != "" {
		// Tournament seats belong to paired names; they attach via rejoin.
		return ErrGameFull
	}
	if g.white.clientID != "" && g.black.clientID != "" {
		return ErrGameFull
	}
	color := otherColor(g.creatorColor)
	seat := g.seat(color)
	if seat.clientID != "" {
		return ErrGameFull
	}
	seat.clientID = msg.ClientID
	seat.name = msg.Name
	seat.connected = true
	g.playerCount.Store(2)
	g.activate()
	return nil
}

func (g *GameSession) activate() {
	g.active = true
	g.turnStarted = time.Now()
	g.startClock()
	g.broadcastStart()
	g.log.Info("game started",
		zap.String("white", g.white.name),
		zap.String("black", g.black.name),
		zap.String("mode", g.tc.Mode()))
}

func (g *GameSession) handleRejoin(msg rejoinSeat) error {
	if g.finished {
		return ErrGameNotFound
	}
	var seat *seatState
	var color string
	switch msg.Name {
	case g.white.name:
		seat, color = &g.white, "w"
	case g.black.name:
		seat, color = &g.black, "b"
	default:
		return ErrNotSeated
	}
	seat.clientID = msg.ClientID
	seat.connected = true
	if g.active {
		// Never a second timer: startClock is a no-op while one runs.
		g.startClock()
	}
	g.bc.ToClient(msg.ClientID, g.snapshot(color))
	return nil
}

func (g *GameSession) handleMove(msg playMove) error {
	if !g.active || g.finished {
		return ErrInvalidGame
	}
	color := g.colorOf(msg.ClientID)
	if color == "" {
		return ErrNotSeated
	}
	if msg.Claimed != "" && msg.Claimed != color {
		return ErrNotYourTurn
	}
	if g.pos.SideToMove() != color {
		return ErrNotYourTurn
	}

	res, err := g.pos.ApplyMove(msg.Move.From, msg.Move.To, msg.Move.Promotion)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			// Snap a desynced client back to the authoritative position.
			g.broadcastSnapshot()
		}
		return ErrInvalidMove
	}

	if !g.tc.NoTime {
		used := time.Since(g.turnStarted)
		inc := time.Duration(g.tc.Increment) * time.Second
		if color == "w" {
			g.whiteTime = clock.Elapse(g.whiteTime, used, inc)
			g.lastWhite = clock.Seconds(g.whiteTime)
			g.broadcastTimer("white", g.lastWhite)
		} else {
			g.blackTime = clock.Elapse(g.blackTime, used, inc)
			g.lastBlack = clock.Seconds(g.blackTime)
			g.broadcastTimer("black", g.lastBlack)
		}
		g.turnStarted = time.Now()
	}

	g.bc.ToSeats(g.seats(), func(c string) any {
		return types.MovePlayed{Type: "move", GameID: g.id, Move: res, FEN: g.pos.FEN(), Color: c}
	})

	if status := g.pos.Terminal(); status != rules.StatusNone {
		g.resolveTerminal(status)
	}
	return nil
}

func (g *GameSession) resolveTerminal(status rules.Status) {
	switch status {
	case rules.StatusCheckmate:
		// The side to move is the mated side.
		winnerColor := otherColor(g.pos.SideToMove())
		winner := g.seat(winnerColor).name
		g.terminate(fmt.Sprintf("%s wins (checkmate)", winner), scoreFor(winnerColor), winner, true)
	case rules.StatusStalemate:
		g.terminate("Draw (stalemate)", "0.5-0.5", "", true)
	case rules.StatusInsufficientMaterial:
		g.terminate("Draw (insufficient material)", "0.5-0.5", "", true)
	default:
		g.terminate("Draw", "0.5-0.5", "", true)
	}
}

func (g *GameSession) handleForfeit(msg forfeitGame) error {
	if !g.active || g.finished {
		return ErrInvalidGame
	}
	color := g.colorOf(msg.ClientID)
	if color == "" {
		return ErrNotSeated
	}
	winnerColor := otherColor(color)
	winner := g.seat(winnerColor).name
	g.terminate(fmt.Sprintf("%s wins (forfeit)", winner), scoreFor(winnerColor), winner, true)
	return nil
}

func (g *GameSession) handleDelete(msg deleteGame) error {
	if g.finished {
		return ErrGameNotFound
	}
	if g.tournamentID != "" {
		return ErrNotAuthorized
	}
	if g.colorOf(msg.ClientID) == "" {
		return ErrNotAuthorized
	}
	g.terminate("Game deleted", "", "", false)
	return nil
}

func (g *GameSession) handleRename(msg setSeatName) {
	if g.finished {
		return
	}
	color := g.colorOf(msg.ClientID)
	if color == "" {
		return
	}
	g.seat(color).name = msg.Name
	g.bc.ToSeats(g.seats(), func(c string) any {
		return types.PlayerNameUpdate{
			Type:     "playerNameUpdate",
			Player:   colorWord(color),
			Name:     msg.Name,
			TimeMode: g.tc.Mode(),
			Color:    c,
		}
	})
}

func (g *GameSession) handleDrop(msg seatDropped) {
	if g.finished {
		return
	}
	color := g.colorOf(msg.ClientID)
	if color == "" {
		return
	}
	seat := g.seat(color)
	seat.connected = false
	if !g.active {
		// Pending casual game: the creator left before an opponent came.
		g.terminateSilent()
		return
	}
	grace := g.dir.cfg.DisconnectGrace
	if grace <= 0 {
		g.disconnectLoss(color)
		return
	}
	dropped := seat.clientID
	time.AfterFunc(grace, func() {
		g.post(graceExpired{ClientID: dropped, Color: color})
	})
}

func (g *GameSession) handleGraceExpired(msg graceExpired) {
	if g.finished {
		return
	}
	seat := g.seat(msg.Color)
	// A rejoin rebinds the seat to a fresh connection id, which voids
	// the pending forfeit.
	if seat.connected || seat.clientID != msg.ClientID {
		return
	}
	g.disconnectLoss(msg.Color)
}

func (g *GameSession) disconnectLoss(loserColor string) {
	winnerColor := otherColor(loserColor)
	winner := g.seat(winnerColor).name
	g.bc.ToClient(g.seat(winnerColor).clientID, types.OpponentDisconnected{
		Type:  "opponentDisconnected",
		Color: winnerColor,
	})
	g.terminate(fmt.Sprintf("%s wins (opponent disconnected)", winner), scoreFor(winnerColor), winner, true)
}

// terminate is the single terminal path. The finished guard makes it
// idempotent: a timeout tick racing a mating move records exactly one
// outcome.
func (g *GameSession) terminate(result, score, winner string, record bool) {
	if g.finished {
		return
	}
	g.finished = true
	g.active = false
	g.stopTicker()
	g.bc.ToSeats(g.seats(), func(c string) any {
		return types.GameOver{Type: "gameOver", Result: result, Winner: winner, Color: c}
	})
	g.cancel()
	g.log.Info("game over", zap.String("result", result))
	if record {
		g.dir.finishGame(Finished{
			GameID:       g.id,
			TournamentID: g.tournamentID,
			Round:        g.round,
			White:        g.white.name,
			Black:        g.black.name,
			Result:       result,
			Score:        score,
			Winner:       winner,
		})
	}
}

func (g *GameSession) terminateSilent() {
	if g.finished {
		return
	}
	g.finished = true
	g.active = false
	g.stopTicker()
	g.cancel()
	g.dir.discardGame(g.id)
}

// tick recomputes the mover's remaining time. The internal cadence is
// sub-second; broadcasts go out only when the displayed seconds value
// changes, so expiry is near-immediate while network cost stays at
// about one update per second per game.
func (g *GameSession) tick() {
	if !g.active || g.finished || g.tc.NoTime {
		return
	}
	side := g.pos.SideToMove()
	var remaining time.Duration
	if side == "w" {
		remaining = g.whiteTime - time.Since(g.turnStarted)
	} else {
		remaining = g.blackTime - time.Since(g.turnStarted)
	}
	if clock.Expired(remaining) {
		winnerColor := otherColor(side)
		winner := g.seat(winnerColor).name
		g.terminate(fmt.Sprintf("%s wins (timeout)", winner), scoreFor(winnerColor), winner, true)
		return
	}
	secs := clock.Seconds(remaining)
	if side == "w" {
		if secs != g.lastWhite {
			g.lastWhite = secs
			g.broadcastTimer("white", secs)
		}
	} else {
		if secs != g.lastBlack {
			g.lastBlack = secs
			g.broadcastTimer("black", secs)
		}
	}
}

func (g *GameSession) startClock() {
	if g.tc.NoTime || g.ticker != nil {
		return
	}
	g.ticker = time.NewTicker(g.dir.cfg.TickInterval)
	g.clockStarts++
}

func (g *GameSession) stopTicker() {
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
}

func (g *GameSession) tickC() <-chan time.Time {
	if g.ticker == nil {
		return nil
	}
	return g.ticker.C
}

func (g *GameSession) broadcastStart() {
	g.bc.ToSeats(g.seats(), func(c string) any {
		return g.snapshot(c)
	})
}

func (g *GameSession) broadcastSnapshot() {
	g.bc.ToSeats(g.seats(), func(c string) any {
		return g.snapshot(c)
	})
}

func (g *GameSession) broadcastTimer(player string, secs int) {
	g.bc.ToSeats(g.seats(), func(c string) any {
		return types.TimerUpdate{Type: "timerUpdate", Player: player, TimeLeft: secs, Color: c}
	})
}

func (g *GameSession) snapshot(color string) types.GameStart {
	mode := ""
	if g.tournamentID != "" {
		mode = "tournament"
	}
	return types.GameStart{
		Type:        "gameStart",
		GameID:      g.id,
		Color:       color,
		WhitePlayer: g.white.name,
		BlackPlayer: g.black.name,
		FEN:         g.pos.FEN(),
		TimeMode:    g.tc.Mode(),
		TimeControl: g.tc,
		WhiteTime:   g.timePtr(g.whiteTime),
		BlackTime:   g.timePtr(g.blackTime),
		Turn:        g.pos.SideToMove(),
		GameMode:    mode,
	}
}

func (g *GameSession) timePtr(d time.Duration) *int {
	if g.tc.NoTime {
		return nil
	}
	v := clock.Seconds(d)
	return &v
}

func (g *GameSession) seats() []broadcast.Seat {
	return []broadcast.Seat{
		{ClientID: g.white.clientID, Color: "w"},
		{ClientID: g.black.clientID, Color: "b"},
	}
}

func (g *GameSession) seat(color string) *seatState {
	if color == "w" {
		return &g.white
	}
	return &g.black
}

func (g *GameSession) colorOf(clientID string) string {
	switch {
	case clientID == "":
		return ""
	case g.white.clientID == clientID:
		return "w"
	case g.black.clientID == clientID:
		return "b"
	default:
		return ""
	}
}

func (g *GameSession) lobbyInfo() types.LobbyGame {
	return types.LobbyGame{
		ID:           g.id,
		Creator:      g.creator,
		CreatorColor: g.creatorColor,
		Players:      int(g.playerCount.Load()),
		TimeControl:  g.tc,
	}
}

func otherColor(c string) string {
	if c == "w" {
		return "b"
	}
	return "w"
}

func colorWord(c string) string {
	if c == "w" {
		return "white"
	}
	return "black"
}

func scoreFor(winnerColor string) string {
	if winnerColor == "w" {
		return "1-0"
	}
	return "0-1"
}
