package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/app"
	"pipeband-quiz-service/internal/domain"
	"pipeband-quiz-service/internal/playback"
)

// EngineFactory builds the playback engine for the player behind r.
type EngineFactory func(r *http.Request) (playback.Engine, error)

type WSHandler struct {
	service  *app.QuizService
	engines  EngineFactory
	origins  map[string]bool
	upgrader websocket.Upgrader
}

// NewWSHandler builds the socket handler. Browsers may connect from the server's own
// origin or one of allowedOrigins; "*" allows any.
func NewWSHandler(service *app.QuizService, engines EngineFactory, allowedOrigins []string) *WSHandler {
	h := &WSHandler{
		service: service,
		engines: engines,
		origins: make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		h.origins[strings.TrimRight(o, "/")] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origins["*"] || h.origins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type readyPayload struct {
	DeviceID string `json:"deviceId"`
}

type playerStatePayload struct {
	IsPlaying bool `json:"isPlaying"`
}

type playerErrorPayload struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type bandPayload struct {
	Index int    `json:"index"`
	Band  string `json:"band"`
}

type yearPayload struct {
	Index int `json:"index"`
	Year  int `json:"year"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

var errUnsupported = errors.New("unsupported message type")

// ServeWS upgrades HTTP requests to websockets and runs one quiz session over them.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	engine, err := h.engines(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Spotify session missing")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	session, err := h.service.NewSession(r.Context(), userID, engine)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("create session failed")
		msg := "Failed to load tracks"
		if errors.Is(err, app.ErrShuttingDown) {
			msg = "Server is restarting, please try again"
		}
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}})
		return
	}
	defer h.service.Close(session.ID())

	updates, cancel, err := session.Subscribe(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("session_id", session.ID()).Msg("ws write error")
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(update.Kind), Payload: update.Snapshot}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r.Context(), session, inbound); err != nil {
			log.Debug().Err(err).Str("type", inbound.Type).Str("session_id", session.ID()).Msg("command rejected")
			msg := outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}}
			if !enqueue(send, msg, writerDone) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer, giving up once the writer has stopped.
func enqueue(send chan<- outboundMessage[any], msg outboundMessage[any], writerDone <-chan struct{}) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *WSHandler) dispatch(ctx context.Context, s *app.Session, in inboundMessage) error {
	switch in.Type {
	case "player.ready":
		var p readyPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return s.PlayerEvent(ctx, playback.Ready{DeviceID: p.DeviceID})
	case "player.not_ready":
		return s.PlayerEvent(ctx, playback.NotReady{})
	case "player.state":
		var p playerStatePayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return s.PlayerEvent(ctx, playback.StateChanged{IsPlaying: p.IsPlaying})
	case "player.error":
		var p playerErrorPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		category, ok := playback.ParseCategory(p.Category)
		if !ok {
			return fmt.Errorf("unknown player error category %q", p.Category)
		}
		return s.PlayerEvent(ctx, playback.Error{Category: category, Message: p.Message})
	case "activate":
		return s.Activate(ctx)
	case "start":
		return s.Start(ctx)
	case "select.band":
		var p bandPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return s.SelectBand(ctx, p.Index, p.Band)
	case "select.year":
		var p yearPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return s.SelectYear(ctx, p.Index, p.Year)
	case "continue":
		var p indexPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return s.Continue(ctx, p.Index)
	case "skip":
		var p indexPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return s.Skip(ctx, p.Index)
	case "exit.open":
		return s.OpenExit(ctx)
	case "exit.cancel":
		return s.CancelExit(ctx)
	case "exit.confirm":
		return s.ConfirmExit(ctx)
	default:
		return errUnsupported
	}
}

type payloadError struct{ err error }

func (e payloadError) Error() string { return "invalid payload: " + e.err.Error() }
func (e payloadError) Unwrap() error { return e.err }

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return payloadError{err: errors.New("missing payload")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return payloadError{err: err}
	}
	return nil
}

func errorMessage(err error) string {
	var pe payloadError
	switch {
	case errors.As(err, &pe):
		return "invalid payload"
	case errors.Is(err, playback.ErrPlayerNotReady):
		return "Could not activate Spotify player"
	case errors.Is(err, domain.ErrPlaybackForbidden):
		return playback.UserMessage(err)
	default:
		return err.Error()
	}
}
