package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsio "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/domain"
)

// DefaultSubject carries completed sessions.
const DefaultSubject = "quiz.sessions.completed"

// Connect dials NATS with reconnects and logged connection events.
func Connect(url string) (*natsio.Conn, error) {
	opts := []natsio.Option{
		natsio.Name("pipeband-quiz-service"),
		natsio.MaxReconnects(-1),
		natsio.ReconnectWait(2 * time.Second),
		natsio.DisconnectErrHandler(func(nc *natsio.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		natsio.ReconnectHandler(func(nc *natsio.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsio.ErrorHandler(func(nc *natsio.Conn, sub *natsio.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := natsio.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher announces completed sessions.
type Publisher struct {
	nc      *natsio.Conn
	subject string
}

func NewPublisher(nc *natsio.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

func (p *Publisher) PublishCompleted(ctx context.Context, ev domain.SessionCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	log.Debug().Str("subject", p.subject).Str("session_id", ev.SessionID).Msg("published completed session")
	return nil
}

// SubscribeCompleted calls handle for every completed session announced on subject.
func SubscribeCompleted(nc *natsio.Conn, subject string, handle func(domain.SessionCompleted)) (*natsio.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := nc.Subscribe(subject, func(msg *natsio.Msg) {
		ev, err := DecodeCompleted(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed event")
			return
		}
		handle(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// DecodeCompleted parses a completed session payload.
func DecodeCompleted(data []byte) (domain.SessionCompleted, error) {
	var ev domain.SessionCompleted
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.SessionCompleted{}, fmt.Errorf("decode completed session: %w", err)
	}
	if ev.SessionID == "" {
		return domain.SessionCompleted{}, fmt.Errorf("decode completed session: missing session id")
	}
	return ev, nil
}
