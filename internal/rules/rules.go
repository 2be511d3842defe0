// Package rules wraps the chess rules engine behind the narrow surface
// the session layer needs: apply a candidate move, report terminal
// status, tell whose turn it is, serialize the position. Everything
// else about chess stays inside this package.
package rules

import (
	"errors"
	"regexp"
	"strings"

	chess "github.com/corentings/chess/v2"
)

var ErrMalformedMove = errors.New("malformed move")
var ErrIllegalMove = errors.New("illegal move")

var squareRe = regexp.MustCompile(`^[a-h][1-8]$`)

// MoveResult describes an accepted move as broadcast to clients.
type MoveResult struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	Capture   bool   `json:"capture"`
	Check     bool   `json:"check"`
}

type Status int

const (
	StatusNone Status = iota
	StatusCheckmate
	StatusStalemate
	StatusDraw
	StatusInsufficientMaterial
)

// Position owns one game's board state.
type Position struct {
	game *chess.Game
}

func NewPosition() *Position {
	return &Position{game: chess.NewGame()}
}

// Load restores a position from a FEN string.
func Load(fen string) (*Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return &Position{game: chess.NewGame(opt)}, nil
}

func (p *Position) FEN() string {
	return p.game.FEN()
}

// SideToMove returns "w" or "b".
func (p *Position) SideToMove() string {
	if p.game.Position().Turn() == chess.White {
		return "w"
	}
	return "b"
}

// ApplyMove validates and plays a candidate move. Malformed coordinates
// yield ErrMalformedMove; well-formed but illegal moves yield
// ErrIllegalMove and leave the position untouched.
func (p *Position) ApplyMove(from, to, promotion string) (MoveResult, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promotion = strings.ToLower(strings.TrimSpace(promotion))

	if !squareRe.MatchString(from) || !squareRe.MatchString(to) {
		return MoveResult{}, ErrMalformedMove
	}
	if promotion != "" && (len(promotion) != 1 || !strings.Contains("qrbn", promotion)) {
		return MoveResult{}, ErrMalformedMove
	}

	pos := p.game.Position()
	mv, err := chess.UCINotation{}.Decode(pos, from+to+promotion)
	if err != nil {
		return MoveResult{}, ErrIllegalMove
	}
	san := chess.AlgebraicNotation{}.Encode(pos, mv)
	if err := p.game.Move(mv, nil); err != nil {
		return MoveResult{}, ErrIllegalMove
	}

	return MoveResult{
		From:      from,
		To:        to,
		Promotion: promotion,
		SAN:       san,
		Capture:   mv.HasTag(chess.Capture) || mv.HasTag(chess.EnPassant),
		Check:     mv.HasTag(chess.Check),
	}, nil
}

// Terminal reports whether the position has reached a game-ending state.
func (p *Position) Terminal() Status {
	switch p.game.Outcome() {
	case chess.WhiteWon, chess.BlackWon:
		// Through move play the only decisive outcome is checkmate.
		return StatusCheckmate
	case chess.Draw:
		switch p.game.Method() {
		case chess.Stalemate:
			return StatusStalemate
		case chess.InsufficientMaterial:
			return StatusInsufficientMaterial
		default:
			return StatusDraw
		}
	}
	return StatusNone
}
