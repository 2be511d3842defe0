package arena

import (
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/broadcast"
	"github.com/arenachess/backend/internal/pairing"
	"github.com/arenachess/backend/pkg/types"
)

const (
	StrategySwiss      = "swiss"
	StrategyRoundRobin = "roundrobin"
)

// Tournament owns one tournament's roster, score table, result log and
// the set of in-flight games for the current round. Roster membership
// and creator authorization are keyed by display name, not connection
// id, so players keep their place across reconnects.
//
// All state is guarded by mu; the lock is never held while calling back
// into the directory's lobby broadcast.
type Tournament struct {
	mu sync.Mutex

	id          string
	name        string
	rounds      int
	tc          types.TimeControl
	strategy    string
	creatorName string

	players      []string
	started      bool
	finished     bool
	currentRound int
	scores       map[string]float64
	results      []types.TournamentResult
	inflight     map[string]struct{}

	rnd *rand.Rand

	dir *Directory
	bc  *broadcast.Broadcaster
	log *zap.Logger
}

// TournamentView is a race-free copy for tests.
type TournamentView struct {
	Round    int
	Started  bool
	Finished bool
	Players  []string
	Scores   map[string]float64
	Inflight int
	Results  []types.TournamentResult
}

func newTournament(d *Directory, id, name string, rounds int, tc types.TimeControl, strategy, creator string) *Tournament {
	return &Tournament{
		id:          id,
		name:        name,
		rounds:      rounds,
		tc:          tc,
		strategy:    strategy,
		creatorName: creator,
		players:     []string{creator},
		scores:      make(map[string]float64),
		inflight:    make(map[string]struct{}),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		dir:         d,
		bc:          d.bc,
		log:         d.log.With(zap.String("tournament_id", id)),
	}
}

// Join adds a player to the roster. Joining twice is a no-op; joining
// after the start is rejected.
func (t *Tournament) Join(playerName string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.players, playerName) {
		if t.started {
			return nil, ErrTournamentStarted
		}
		t.players = append(t.players, playerName)
	}
	return slices.Clone(t.players), nil
}

// Start begins round 1. Only the creator (matched by current display
// name, to survive reconnection) may start.
func (t *Tournament) Start(requesterName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if requesterName != t.creatorName {
		return ErrNotAuthorized
	}
	if t.started {
		return ErrTournamentStarted
	}
	t.players = dedupe(t.players)
	if len(t.players) < 2 {
		return ErrNotEnoughPlayers
	}
	t.started = true
	t.currentRound = 1
	t.results = nil
	t.scores = make(map[string]float64, len(t.players))
	for _, p := range t.players {
		t.scores[p] = 0
	}
	t.inflight = make(map[string]struct{})
	t.beginRoundLocked()
	t.maybeAdvanceLocked()
	return nil
}

// ReportResult is called by a finishing game session. It updates the
// log and score table and, once the round's in-flight set is empty,
// either begins the next round or finishes the tournament. Per-
// tournament serialization through mu means simultaneous finishes can
// never double-trigger advancement.
func (t *Tournament) ReportResult(f Finished) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	if _, ok := t.inflight[f.GameID]; !ok {
		return
	}
	delete(t.inflight, f.GameID)
	t.results = append(t.results, types.TournamentResult{
		Round:  f.Round,
		White:  f.White,
		Black:  f.Black,
		Result: f.Score,
		Winner: f.Winner,
	})
	switch f.Score {
	case "1-0":
		t.scores[f.White]++
	case "0-1":
		t.scores[f.Black]++
	case "0.5-0.5":
		t.scores[f.White] += 0.5
		t.scores[f.Black] += 0.5
	}
	t.maybeAdvanceLocked()
}

// maybeAdvanceLocked advances while the in-flight set is empty; a round
// consisting entirely of byes resolves immediately and must not stall
// the tournament.
func (t *Tournament) maybeAdvanceLocked() {
	for len(t.inflight) == 0 && !t.finished {
		if t.currentRound < t.rounds {
			t.currentRound++
			t.beginRoundLocked()
		} else {
			t.finishLocked()
		}
	}
}

func (t *Tournament) beginRoundLocked() {
	var pairs []pairing.Pairing
	if t.strategy == StrategyRoundRobin {
		pairs = pairing.RoundRobin(t.players, t.currentRound)
	} else {
		pairs = pairing.Swiss(t.players, t.scores, t.playedBeforeLocked, t.rnd)
	}

	wire := make([][]string, 0, len(pairs))
	assignments := make([]types.GameAssignment, 0, len(pairs))
	for _, p := range pairs {
		if p.Bye() {
			wire = append(wire, []string{p.White})
			// A bye is an immediate score credit; no game is created.
			t.results = append(t.results, types.TournamentResult{
				Round:  t.currentRound,
				White:  p.White,
				Result: "1-0",
				Winner: p.White,
			})
			t.scores[p.White]++
			continue
		}
		wire = append(wire, []string{p.White, p.Black})
		gameID := t.dir.spawnTournamentGame(t, p.White, p.Black, t.currentRound)
		t.inflight[gameID] = struct{}{}
		assignments = append(assignments, types.GameAssignment{
			GameID: gameID,
			White:  p.White,
			Black:  p.Black,
			Round:  t.currentRound,
		})
	}

	t.log.Info("round started",
		zap.Int("round", t.currentRound),
		zap.Int("games", len(assignments)))

	t.bc.ToNames(t.players, types.TournamentRoundStart{
		Type:           "tournamentRoundStart",
		TournamentID:   t.id,
		Round:          t.currentRound,
		Pairings:       wire,
		Scores:         t.scoresCopyLocked(),
		TournamentType: t.strategy,
	})
	// Explicit assignments let a client that reconnects mid-round find
	// its game without having seen the original broadcast.
	t.bc.ToNames(t.players, types.TournamentGameAssignments{
		Type:         "tournamentGameAssignments",
		TournamentID: t.id,
		Round:        t.currentRound,
		Assignments:  assignments,
	})
}

func (t *Tournament) playedBeforeLocked(a, b string) bool {
	for _, r := range t.results {
		if r.Black == "" {
			continue
		}
		if (r.White == a && r.Black == b) || (r.White == b && r.Black == a) {
			return true
		}
	}
	return false
}

func (t *Tournament) finishLocked() {
	t.finished = true
	leaderboard := t.leaderboardLocked()
	var winners []string
	if len(leaderboard) > 0 {
		top := leaderboard[0].Score
		for _, s := range leaderboard {
			if s.Score == top {
				winners = append(winners, s.Name)
			}
		}
	}
	scores := t.scoresCopyLocked()
	results := slices.Clone(t.results)

	t.log.Info("tournament finished", zap.Strings("winners", winners))
	t.bc.ToNames(t.players, types.TournamentFinished{
		Type:         "tournamentFinished",
		TournamentID: t.id,
		Winners:      winners,
		Scores:       scores,
		Results:      results,
		Leaderboard:  leaderboard,
	})
	t.dir.archiveTournament(types.HistoryTournament{
		ID:          t.id,
		Name:        t.name,
		Rounds:      t.rounds,
		Winners:     winners,
		FinalScores: scores,
		Leaderboard: leaderboard,
		FinishedAt:  time.Now(),
	})
}

// leaderboardLocked sorts by descending score; ties keep roster
// (insertion) order via the stable sort.
func (t *Tournament) leaderboardLocked() []types.Standing {
	standings := make([]types.Standing, 0, len(t.players))
	for _, p := range t.players {
		standings = append(standings, types.Standing{Name: p, Score: t.scores[p]})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	return standings
}

// shutdown authorizes the deletion and returns what the directory needs
// for the cascade: the round's in-flight game ids and the roster to
// notify. Marking finished here stops any late result report from
// starting another round.
func (t *Tournament) shutdown(requesterName string) (gameIDs, roster []string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if requesterName != t.creatorName {
		return nil, nil, ErrNotAuthorized
	}
	t.finished = true
	for id := range t.inflight {
		gameIDs = append(gameIDs, id)
	}
	t.inflight = make(map[string]struct{})
	return gameIDs, slices.Clone(t.players), nil
}

func (t *Tournament) scoresCopyLocked() map[string]float64 {
	out := make(map[string]float64, len(t.scores))
	for k, v := range t.scores {
		out[k] = v
	}
	return out
}

func (t *Tournament) lobbyInfo() types.LobbyTournament {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.LobbyTournament{
		ID:           t.id,
		Name:         t.name,
		PlayersCount: len(t.players),
		Rounds:       t.rounds,
		TimeControl:  t.tc,
		CreatorName:  t.creatorName,
		Started:      t.started,
	}
}

func (t *Tournament) View() TournamentView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TournamentView{
		Round:    t.currentRound,
		Started:  t.started,
		Finished: t.finished,
		Players:  slices.Clone(t.players),
		Scores:   t.scoresCopyLocked(),
		Inflight: len(t.inflight),
		Results:  slices.Clone(t.results),
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
