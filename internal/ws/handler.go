// Package ws is the transport edge: one websocket per client, a writer
// goroutine draining a buffered outbox, and a read loop that decodes
// frames and dispatches them to the directory.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/arena"
	"github.com/arenachess/backend/internal/registry"
	"github.com/arenachess/backend/pkg/types"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
)

var errOutboxFull = errors.New("outbox full")

// conn adapts a websocket to the registry's Sender. Send never blocks:
// a client too slow to drain its outbox loses messages rather than
// stalling game fan-out.
type conn struct {
	out chan any
}

func (c *conn) Send(msg any) error {
	select {
	case c.out <- msg:
		return nil
	default:
		return errOutboxFull
	}
}

func Handler(reg *registry.Registry, dir *arena.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// The deployment fronts this with a proxy that enforces
			// origin, so the handshake accepts any.
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		c := &conn{out: make(chan any, outboxSize)}
		client := reg.Register(c)
		defer dir.Disconnect(client.ID)
		log.Info("client connected", zap.String("client_id", client.ID))

		// Writer goroutine: marshals and writes everything the game
		// layer fans out to this client.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				var msg any
				select {
				case msg = <-c.out:
				case <-writeCtx.Done():
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("marshal outbound", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = sock.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		c.Send(types.NameSet{Type: "nameSet", Name: client.Name})

		// Reader loop. No idle deadline: a player watching their
		// opponent think sends nothing for minutes at a time.
		for {
			_, data, err := sock.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.String("client_id", client.ID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.Send(types.ErrorMessage{Type: "error", Message: "bad json"})
				continue
			}
			if err := dispatch(dir, client.ID, cm); err != nil {
				c.Send(types.ErrorMessage{Type: "error", Message: err.Error()})
			}
		}
	}
}

// dispatch validates the fields each variant requires and routes it.
// Returned errors go back to the sender only.
func dispatch(dir *arena.Directory, clientID string, m types.ClientMessage) error {
	switch m.Type {
	case "setName":
		return dir.SetName(clientID, m.Name)

	case "createGame":
		if m.TimeControl == nil {
			return arena.ErrInvalidTimeControl
		}
		return dir.CreateGame(clientID, *m.TimeControl, m.Color)

	case "joinGame":
		if m.GameID == "" {
			return arena.ErrGameNotFound
		}
		return dir.JoinGame(clientID, m.GameID)

	case "rejoinGame":
		if m.GameID == "" {
			return arena.ErrGameNotFound
		}
		return dir.RejoinGame(clientID, m.GameID, m.Name)

	case "move":
		if m.GameID == "" || m.Move == nil {
			return arena.ErrInvalidMove
		}
		return dir.Move(clientID, m.GameID, m.Player, *m.Move)

	case "deleteGame":
		if m.GameID == "" {
			return arena.ErrGameNotFound
		}
		return dir.DeleteGame(clientID, m.GameID)

	case "forfeit":
		if m.GameID == "" {
			return arena.ErrInvalidGame
		}
		return dir.Forfeit(clientID, m.GameID)

	case "fetchLobby":
		dir.FetchLobby(clientID)
		return nil

	case "fetchHistory":
		dir.FetchHistory(clientID)
		return nil

	case "createTournament":
		if m.TimeControl == nil {
			return arena.ErrInvalidTimeControl
		}
		return dir.CreateTournament(clientID, m.Name, m.Rounds, *m.TimeControl, m.TournamentType)

	case "joinTournament":
		if m.TournamentID == "" {
			return arena.ErrTournamentNotFound
		}
		return dir.JoinTournament(clientID, m.TournamentID)

	case "startTournament":
		if m.TournamentID == "" {
			return arena.ErrTournamentNotFound
		}
		return dir.StartTournament(clientID, m.TournamentID)

	case "deleteTournament":
		if m.TournamentID == "" {
			return arena.ErrTournamentNotFound
		}
		return dir.DeleteTournament(clientID, m.TournamentID)

	default:
		return errors.New("unknown message type")
	}
}
