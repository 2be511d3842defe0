package arena

import "errors"

// Validation, authorization and not-found failures are reported back to
// the offending sender only; the wire layer forwards the message text.
var (
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidTimeControl = errors.New("invalid time control")
	ErrInvalidColor       = errors.New("invalid color choice")
	ErrInvalidRounds      = errors.New("invalid round count")

	ErrGameNotFound = errors.New("game not found")
	ErrGameFull     = errors.New("game is full")
	ErrInvalidGame  = errors.New("invalid game")
	ErrInvalidMove  = errors.New("invalid move")
	ErrNotYourTurn  = errors.New("not your turn or color")
	ErrNotSeated    = errors.New("not a player in this game")

	ErrNotAuthorized      = errors.New("not authorized")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentStarted  = errors.New("tournament already started")
	ErrNotEnoughPlayers   = errors.New("need at least 2 players to start tournament")
)
