package arena

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/broadcast"
	"github.com/arenachess/backend/internal/registry"
	"github.com/arenachess/backend/pkg/types"
)

const maxNameLength = 20

type Config struct {
	// TickInterval is the clock loop cadence for timed games.
	TickInterval time.Duration
	// DisconnectGrace is how long a dropped seat may rejoin before the
	// game is forfeited. Zero forfeits immediately.
	DisconnectGrace time.Duration
}

// Directory is the process-wide owner of all live games and
// tournaments plus the in-memory history logs. Every inbound client
// operation enters here; the directory routes it to the session or
// tournament that owns the state.
//
// The directory mutex guards only the keyed collections. It is never
// held while calling into a game or tournament, which keeps the lock
// order one-way (tournament -> directory) and free of cycles.
type Directory struct {
	mu                sync.RWMutex
	games             map[string]*GameSession
	tournaments       map[string]*Tournament
	gameHistory       []types.HistoryGame
	tournamentHistory []types.HistoryTournament

	ctx context.Context
	cfg Config
	reg *registry.Registry
	bc  *broadcast.Broadcaster
	log *zap.Logger
}

func NewDirectory(ctx context.Context, cfg Config, reg *registry.Registry, bc *broadcast.Broadcaster, log *zap.Logger) *Directory {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	return &Directory{
		games:       make(map[string]*GameSession),
		tournaments: make(map[string]*Tournament),
		ctx:         ctx,
		cfg:         cfg,
		reg:         reg,
		bc:          bc,
		log:         log,
	}
}

// SetName changes a client's display name and, if they are seated in a
// live game, updates the seat and notifies both players.
func (d *Directory) SetName(clientID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	c, ok := d.reg.SetName(clientID, name)
	if !ok {
		return ErrInvalidName
	}
	d.bc.ToClient(clientID, types.NameSet{Type: "nameSet", Name: name})
	if c.GameID != "" {
		if g := d.game(c.GameID); g != nil {
			g.post(setSeatName{ClientID: clientID, Name: name})
		}
	}
	d.broadcastLobby()
	return nil
}

func (d *Directory) CreateGame(clientID string, tc types.TimeControl, color string) error {
	if !tc.NoTime && (tc.Minutes < 1 || tc.Increment < 0) {
		return ErrInvalidTimeControl
	}
	if color != "w" && color != "b" {
		return ErrInvalidColor
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrInvalidGame
	}

	id := uuid.NewString()
	g := newGameSession(d, gameParams{
		ID:           id,
		TimeControl:  tc,
		Creator:      client.Name,
		CreatorColor: color,
	})
	seat := g.seat(color)
	seat.clientID = clientID
	seat.name = client.Name
	seat.connected = true
	g.playerCount.Store(1)

	d.mu.Lock()
	d.games[id] = g
	d.mu.Unlock()
	g.start()

	d.reg.SetGame(clientID, id)
	d.bc.ToClient(clientID, types.GameCreated{
		Type:        "gameCreated",
		GameID:      id,
		Color:       color,
		TimeMode:    tc.Mode(),
		TimeControl: tc,
		WhitePlayer: g.white.name,
		BlackPlayer: g.black.name,
	})
	d.log.Info("game created",
		zap.String("game_id", id),
		zap.String("creator", client.Name),
		zap.String("color", color))
	d.broadcastLobby()
	return nil
}

func (d *Directory) JoinGame(clientID, gameID string) error {
	g := d.game(gameID)
	if g == nil {
		return ErrGameNotFound
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrInvalidGame
	}
	reply := make(chan error, 1)
	if err := g.ask(joinSeat{ClientID: clientID, Name: client.Name, Reply: reply}, reply); err != nil {
		return err
	}
	d.reg.SetGame(clientID, gameID)
	d.broadcastLobby()
	return nil
}

// RejoinGame re-associates a reconnected client (new connection id)
// with a prior game by name match against a bound seat.
func (d *Directory) RejoinGame(clientID, gameID, name string) error {
	g := d.game(gameID)
	if g == nil {
		return ErrGameNotFound
	}
	if name != "" {
		if err := d.SetName(clientID, name); err != nil {
			return err
		}
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrInvalidGame
	}
	reply := make(chan error, 1)
	if err := g.ask(rejoinSeat{ClientID: clientID, Name: client.Name, Reply: reply}, reply); err != nil {
		return err
	}
	d.reg.SetGame(clientID, gameID)
	return nil
}

func (d *Directory) Move(clientID, gameID, claimed string, move types.MoveSpec) error {
	g := d.game(gameID)
	if g == nil {
		return ErrInvalidGame
	}
	reply := make(chan error, 1)
	return g.ask(playMove{ClientID: clientID, Claimed: claimed, Move: move, Reply: reply}, reply)
}

func (d *Directory) DeleteGame(clientID, gameID string) error {
	g := d.game(gameID)
	if g == nil {
		return ErrGameNotFound
	}
	reply := make(chan error, 1)
	if err := g.ask(deleteGame{ClientID: clientID, Reply: reply}, reply); err != nil {
		return err
	}
	d.removeGame(gameID)
	d.broadcastLobby()
	return nil
}

func (d *Directory) Forfeit(clientID, gameID string) error {
	g := d.game(gameID)
	if g == nil {
		return ErrInvalidGame
	}
	reply := make(chan error, 1)
	return g.ask(forfeitGame{ClientID: clientID, Reply: reply}, reply)
}

func (d *Directory) FetchLobby(clientID string) {
	d.bc.ToClient(clientID, d.lobbySnapshot())
}

// FetchHistory sends the sender today's concluded games and
// tournaments.
func (d *Directory) FetchHistory(clientID string) {
	now := time.Now()
	games := []types.HistoryGame{}
	tournaments := []types.HistoryTournament{}
	d.mu.RLock()
	for _, h := range d.gameHistory {
		if sameDay(h.Date, now) {
			games = append(games, h)
		}
	}
	for _, h := range d.tournamentHistory {
		if sameDay(h.FinishedAt, now) {
			tournaments = append(tournaments, h)
		}
	}
	d.mu.RUnlock()
	d.bc.ToClient(clientID, types.History{Type: "history", Games: games, Tournaments: tournaments})
}

func (d *Directory) CreateTournament(clientID, name string, rounds int, tc types.TimeControl, strategy string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if rounds < 1 {
		return ErrInvalidRounds
	}
	if !tc.NoTime && (tc.Minutes < 1 || tc.Increment < 0) {
		return ErrInvalidTimeControl
	}
	if strategy != StrategyRoundRobin {
		strategy = StrategySwiss
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrInvalidGame
	}

	id := uuid.NewString()
	t := newTournament(d, id, name, rounds, tc, strategy, client.Name)
	d.mu.Lock()
	d.tournaments[id] = t
	d.mu.Unlock()

	d.bc.ToClient(clientID, types.TournamentCreated{
		Type:           "tournamentCreated",
		TournamentID:   id,
		TournamentType: strategy,
		CreatorName:    client.Name,
	})
	d.log.Info("tournament created",
		zap.String("tournament_id", id),
		zap.String("creator", client.Name),
		zap.String("strategy", strategy))
	d.broadcastLobby()
	return nil
}

func (d *Directory) JoinTournament(clientID, tournamentID string) error {
	t := d.tournament(tournamentID)
	if t == nil {
		return ErrTournamentNotFound
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrInvalidGame
	}
	roster, err := t.Join(client.Name)
	if err != nil {
		return err
	}
	info := t.lobbyInfo()
	d.bc.ToNames(roster, types.TournamentLobbyUpdate{
		Type:         "tournamentLobbyUpdate",
		TournamentID: tournamentID,
		Players:      roster,
		CreatorName:  info.CreatorName,
		Started:      info.Started,
	})
	d.broadcastLobby()
	return nil
}

func (d *Directory) StartTournament(clientID, tournamentID string) error {
	t := d.tournament(tournamentID)
	if t == nil {
		return ErrTournamentNotFound
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrNotAuthorized
	}
	if err := t.Start(client.Name); err != nil {
		return err
	}
	d.broadcastLobby()
	return nil
}

// DeleteTournament cancels every in-flight game of the current round,
// notifies the roster and removes the tournament.
func (d *Directory) DeleteTournament(clientID, tournamentID string) error {
	t := d.tournament(tournamentID)
	if t == nil {
		return ErrTournamentNotFound
	}
	client, ok := d.reg.Get(clientID)
	if !ok {
		return ErrNotAuthorized
	}
	gameIDs, roster, err := t.shutdown(client.Name)
	if err != nil {
		return err
	}
	for _, id := range gameIDs {
		if g := d.game(id); g != nil {
			g.post(cancelGame{Result: "Tournament cancelled"})
			d.removeGame(id)
		}
	}
	d.bc.ToNames(roster, types.TournamentDeleted{Type: "tournamentDeleted", TournamentID: tournamentID})
	d.removeTournament(tournamentID)
	d.log.Info("tournament deleted", zap.String("tournament_id", tournamentID))
	d.broadcastLobby()
	return nil
}

// Disconnect handles a closed connection: the seat the client held (if
// any) is reported to its game, then the identity is dropped.
func (d *Directory) Disconnect(clientID string) {
	c, ok := d.reg.Get(clientID)
	if ok && c.GameID != "" {
		if g := d.game(c.GameID); g != nil {
			g.post(seatDropped{ClientID: clientID})
		}
	}
	d.reg.Unregister(clientID)
	d.broadcastLobby()
}

// spawnTournamentGame creates an active game for a pairing, binding any
// currently connected clients whose display name matches a paired
// player. Called with the owning tournament's lock held.
func (d *Directory) spawnTournamentGame(t *Tournament, white, black string, round int) string {
	id := uuid.NewString()
	g := newGameSession(d, gameParams{
		ID:           id,
		TimeControl:  t.tc,
		Creator:      white,
		CreatorColor: "w",
		TournamentID: t.id,
		Round:        round,
	})
	g.white.name = white
	g.black.name = black

	bound := int32(0)
	if c, ok := d.reg.FindByName(white); ok {
		g.white.clientID = c.ID
		g.white.connected = true
		d.reg.SetGame(c.ID, id)
		bound++
	}
	if c, ok := d.reg.FindByName(black); ok {
		g.black.clientID = c.ID
		g.black.connected = true
		d.reg.SetGame(c.ID, id)
		bound++
	}
	g.playerCount.Store(bound)

	g.active = true
	g.turnStarted = time.Now()
	g.startClock()
	g.broadcastStart()

	d.mu.Lock()
	d.games[id] = g
	d.mu.Unlock()
	g.start()
	return id
}

// finishGame runs after a session records its terminal outcome: the
// game leaves the live directory, a history row is appended and, for
// tournament games, the result is reported to the owning tournament.
func (d *Directory) finishGame(f Finished) {
	white, black := f.White, f.Black
	if white == "" {
		white = "Unknown"
	}
	if black == "" {
		black = "Unknown"
	}
	d.mu.Lock()
	delete(d.games, f.GameID)
	d.gameHistory = append(d.gameHistory, types.HistoryGame{
		Players: []string{white, black},
		Result:  f.Result,
		Date:    time.Now(),
	})
	d.mu.Unlock()
	d.reg.ClearGame(f.GameID)

	if f.TournamentID != "" {
		if t := d.tournament(f.TournamentID); t != nil {
			t.ReportResult(f)
		}
	}
	d.broadcastLobby()
}

// discardGame drops a pending game that never produced a result.
func (d *Directory) discardGame(gameID string) {
	d.removeGame(gameID)
	d.broadcastLobby()
}

func (d *Directory) archiveTournament(row types.HistoryTournament) {
	d.mu.Lock()
	delete(d.tournaments, row.ID)
	d.tournamentHistory = append(d.tournamentHistory, row)
	d.mu.Unlock()
}

func (d *Directory) game(id string) *GameSession {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.games[id]
}

func (d *Directory) tournament(id string) *Tournament {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tournaments[id]
}

func (d *Directory) removeGame(id string) {
	d.mu.Lock()
	delete(d.games, id)
	d.mu.Unlock()
	d.reg.ClearGame(id)
}

func (d *Directory) removeTournament(id string) {
	d.mu.Lock()
	delete(d.tournaments, id)
	d.mu.Unlock()
}

func (d *Directory) lobbySnapshot() types.LobbyData {
	d.mu.RLock()
	gs := make([]*GameSession, 0, len(d.games))
	for _, g := range d.games {
		gs = append(gs, g)
	}
	ts := make([]*Tournament, 0, len(d.tournaments))
	for _, t := range d.tournaments {
		ts = append(ts, t)
	}
	d.mu.RUnlock()

	games := make([]types.LobbyGame, 0, len(gs))
	for _, g := range gs {
		games = append(games, g.lobbyInfo())
	}
	tournaments := make([]types.LobbyTournament, 0, len(ts))
	for _, t := range ts {
		tournaments = append(tournaments, t.lobbyInfo())
	}
	return types.LobbyData{Type: "lobbyData", Games: games, Tournaments: tournaments}
}

func (d *Directory) broadcastLobby() {
	d.bc.ToAll(d.lobbySnapshot())
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
