package types

import "time"

// TimeControl describes a game's clock settings. NoTime games never run
// a clock; otherwise each side starts with Minutes and gains Increment
// seconds per completed move.
type TimeControl struct {
	NoTime    bool `json:"noTime"`
	Minutes   int  `json:"minutes,omitempty"`
	Increment int  `json:"increment,omitempty"`
}

func (tc TimeControl) Mode() string {
	if tc.NoTime {
		return "none"
	}
	return "timed"
}

// MoveSpec is the client's candidate move in coordinate form.
type MoveSpec struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// ClientMessage is the single inbound frame; Type selects the variant
// and the dispatch layer validates the fields that variant requires.
type ClientMessage struct {
	Type           string       `json:"type"`
	Name           string       `json:"name,omitempty"`
	GameID         string       `json:"gameId,omitempty"`
	TournamentID   string       `json:"tournamentId,omitempty"`
	Color          string       `json:"color,omitempty"`  // "w" | "b", creator's seat on createGame
	Player         string       `json:"player,omitempty"` // mover's claimed color on move
	TimeControl    *TimeControl `json:"timeControl,omitempty"`
	Move           *MoveSpec    `json:"move,omitempty"`
	Rounds         int          `json:"rounds,omitempty"`
	TournamentType string       `json:"tournamentType,omitempty"` // "swiss" | "roundrobin"
}

// Outbound frames. One struct per type tag; game-scoped frames carry a
// Color field filled per recipient during fan-out.

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type NameSet struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type PlayerNameUpdate struct {
	Type     string `json:"type"`
	Player   string `json:"player"` // "white" | "black"
	Name     string `json:"name"`
	TimeMode string `json:"timeMode"`
	Color    string `json:"color,omitempty"`
}

type GameCreated struct {
	Type        string      `json:"type"`
	GameID      string      `json:"gameId"`
	Color       string      `json:"color"`
	TimeMode    string      `json:"timeMode"`
	TimeControl TimeControl `json:"timeControl"`
	WhitePlayer string      `json:"whitePlayer,omitempty"`
	BlackPlayer string      `json:"blackPlayer,omitempty"`
}

// GameStart doubles as the full-state snapshot pushed on rejoin and
// after a rejected move.
type GameStart struct {
	Type        string      `json:"type"`
	GameID      string      `json:"gameId"`
	Color       string      `json:"color,omitempty"`
	WhitePlayer string      `json:"whitePlayer,omitempty"`
	BlackPlayer string      `json:"blackPlayer,omitempty"`
	FEN         string      `json:"fen"`
	TimeMode    string      `json:"timeMode"`
	TimeControl TimeControl `json:"timeControl"`
	WhiteTime   *int        `json:"whiteTime"` // seconds, nil when untimed
	BlackTime   *int        `json:"blackTime"`
	Turn        string      `json:"turn"`
	GameMode    string      `json:"gameMode,omitempty"` // "tournament" on tournament games
}

type MovePlayed struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
	Move   any    `json:"move"`
	FEN    string `json:"fen"`
	Color  string `json:"color,omitempty"`
}

type TimerUpdate struct {
	Type     string `json:"type"`
	Player   string `json:"player"` // "white" | "black"
	TimeLeft int    `json:"timeLeft"`
	Color    string `json:"color,omitempty"`
}

type GameOver struct {
	Type   string `json:"type"`
	Result string `json:"result"`
	Winner string `json:"winner,omitempty"`
	Color  string `json:"color,omitempty"`
}

type OpponentDisconnected struct {
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

type LobbyGame struct {
	ID           string      `json:"id"`
	Creator      string      `json:"creator"`
	CreatorColor string      `json:"creatorColor"`
	Players      int         `json:"players"`
	TimeControl  TimeControl `json:"timeControl"`
}

type LobbyTournament struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	PlayersCount int         `json:"playersCount"`
	Rounds       int         `json:"rounds"`
	TimeControl  TimeControl `json:"timeControl"`
	CreatorName  string      `json:"creatorName"`
	Started      bool        `json:"started"`
}

type LobbyData struct {
	Type        string            `json:"type"`
	Games       []LobbyGame       `json:"games"`
	Tournaments []LobbyTournament `json:"tournaments"`
}

type HistoryGame struct {
	Players []string  `json:"players"`
	Result  string    `json:"result"`
	Date    time.Time `json:"date"`
}

type HistoryTournament struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Rounds      int                `json:"rounds"`
	Winners     []string           `json:"winners"`
	FinalScores map[string]float64 `json:"finalScores"`
	Leaderboard []Standing         `json:"leaderboard"`
	FinishedAt  time.Time          `json:"finishedAt"`
}

type History struct {
	Type        string              `json:"type"`
	Games       []HistoryGame       `json:"games"`
	Tournaments []HistoryTournament `json:"tournaments"`
}

type TournamentCreated struct {
	Type           string `json:"type"`
	TournamentID   string `json:"tournamentId"`
	TournamentType string `json:"tournamentType"`
	CreatorName    string `json:"creatorName"`
}

type TournamentLobbyUpdate struct {
	Type         string   `json:"type"`
	TournamentID string   `json:"tournamentId"`
	Players      []string `json:"players"`
	CreatorName  string   `json:"creatorName"`
	Started      bool     `json:"started"`
}

type TournamentRoundStart struct {
	Type           string             `json:"type"`
	TournamentID   string             `json:"tournamentId"`
	Round          int                `json:"round"`
	Pairings       [][]string         `json:"pairings"`
	Scores         map[string]float64 `json:"scores"`
	TournamentType string             `json:"tournamentType"`
}

type GameAssignment struct {
	GameID string `json:"gameId"`
	White  string `json:"white"`
	Black  string `json:"black"`
	Round  int    `json:"round"`
}

type TournamentGameAssignments struct {
	Type         string           `json:"type"`
	TournamentID string           `json:"tournamentId"`
	Round        int              `json:"round"`
	Assignments  []GameAssignment `json:"assignments"`
}

// TournamentResult is one row of the append-only result log. Byes are
// logged with an empty Black.
type TournamentResult struct {
	Round  int    `json:"round"`
	White  string `json:"white"`
	Black  string `json:"black,omitempty"`
	Result string `json:"result"` // "1-0" | "0-1" | "0.5-0.5"
	Winner string `json:"winner,omitempty"`
}

type Standing struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type TournamentFinished struct {
	Type         string             `json:"type"`
	TournamentID string             `json:"tournamentId"`
	Winners      []string           `json:"winners"`
	Scores       map[string]float64 `json:"scores"`
	Results      []TournamentResult `json:"results"`
	Leaderboard  []Standing         `json:"leaderboard"`
}

type TournamentDeleted struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournamentId"`
}
