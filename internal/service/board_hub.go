package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syncboard-api/internal/observability"
)

// Board event types pushed to connected sessions.
const (
	EventTaskCreated    = "taskCreated"
	EventTaskUpdated    = "taskUpdated"
	EventTaskDeleted    = "taskDeleted"
	EventActivityLogged = "activityLogged"
)

const boardSendBufferSize = 32

// BoardEvent is the envelope fanned out to every connected session.
type BoardEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventPublisher is the narrow dependency mutation services use to announce
// committed changes. Delivery is at-most-once and best-effort; a failed
// delivery is never surfaced to the mutating caller.
type EventPublisher interface {
	Publish(event BoardEvent)
}

// boardEnvelope is the cross-node wire format. Source lets a hub discard its
// own events when they come back over redis or nats.
type boardEnvelope struct {
	Source string     `json:"source"`
	Event  BoardEvent `json:"event"`
	SentAt time.Time  `json:"sent_at"`
}

// SessionOptions wraps metadata extracted during the HTTP upgrade.
type SessionOptions struct {
	UserID        uint
	Username      string
	CorrelationID string
	Context       context.Context
}

// BoardHub tracks connected board sessions and fans events out to all of
// them. With a redis client or nats connection attached it also bridges
// events across nodes.
type BoardHub struct {
	mu       sync.RWMutex
	sessions map[*boardSession]struct{}

	redis       *redis.Client
	redisSubj   string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

type boardSession struct {
	conn    *websocket.Conn
	send    chan BoardEvent
	options SessionOptions
	hub     *BoardHub
	closed  chan struct{}
	once    sync.Once
}

// NewBoardHub creates a hub. Both redisClient and natsConn may be nil; the
// hub then fans out to local sessions only.
func NewBoardHub(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *BoardHub {
	redisSubj := ""
	natsSubject := ""
	if channelBase != "" {
		redisSubj = channelBase + ":events"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &BoardHub{
		sessions:    make(map[*boardSession]struct{}),
		redis:       redisClient,
		redisSubj:   redisSubj,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "board_hub").Logger(),
		nodeID:      uuid.NewString(),
	}
}

// Start launches the cross-node consumers. It returns immediately.
func (h *BoardHub) Start(ctx context.Context) {
	if h.redis != nil && h.redisSubj != "" {
		go h.consumeRedis(ctx)
	}
	if h.nats != nil && h.natsSubject != "" {
		go h.consumeNATS(ctx)
	}
}

// Publish fans the event out to every connected session and forwards it to
// the other nodes. Sessions with a full send queue are skipped: a session
// that misses events resynchronizes by refetching the board on reconnect.
func (h *BoardHub) Publish(event BoardEvent) {
	h.fanOut(event)

	if err := h.forward(event); err != nil {
		h.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to forward board event")
	}
}

// Sessions reports the number of currently connected sessions.
func (h *BoardHub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ServeConnection pumps events to the websocket until it closes. Blocks for
// the lifetime of the connection.
func (h *BoardHub) ServeConnection(conn *websocket.Conn, opts SessionOptions) {
	session := &boardSession{
		conn:    conn,
		send:    make(chan BoardEvent, boardSendBufferSize),
		options: opts,
		hub:     h,
		closed:  make(chan struct{}),
	}

	h.register(session)
	observability.BoardConnections().Inc()
	defer observability.BoardConnections().Dec()

	go session.writer()
	session.reader()
}

func (h *BoardHub) fanOut(event BoardEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for session := range h.sessions {
		select {
		case session.send <- event:
		default:
			h.logger.Warn().
				Uint("user_id", session.options.UserID).
				Str("type", event.Type).
				Msg("dropping board event for slow session")
		}
	}

	observability.BoardEvents().WithLabelValues(event.Type).Inc()
}

func (h *BoardHub) forward(event BoardEvent) error {
	if (h.redis == nil || h.redisSubj == "") && (h.nats == nil || h.natsSubject == "") {
		return nil
	}

	envelope := boardEnvelope{
		Source: h.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if h.redis != nil && h.redisSubj != "" {
		if err := h.redis.Publish(context.Background(), h.redisSubj, payload).Err(); err != nil {
			return err
		}
	}

	if h.nats != nil && h.natsSubject != "" {
		if err := h.nats.Publish(h.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (h *BoardHub) consumeRedis(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, h.redisSubj)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			h.logger.Error().Err(err).Msg("board redis subscription closed")
			return
		}
		h.handleEnvelope([]byte(msg.Payload))
	}
}

func (h *BoardHub) consumeNATS(ctx context.Context) {
	sub, err := h.nats.QueueSubscribe(h.natsSubject, "syncboard-events", func(msg *nats.Msg) {
		h.handleEnvelope(msg.Data)
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to nats board subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to drain board nats subscription")
		}
	}()
}

func (h *BoardHub) handleEnvelope(data []byte) {
	var envelope boardEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.logger.Warn().Err(err).Msg("invalid board event envelope")
		return
	}

	if envelope.Source == h.nodeID {
		return
	}

	h.fanOut(envelope.Event)
}

func (h *BoardHub) register(session *boardSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session] = struct{}{}
	h.logger.Debug().Uint("user_id", session.options.UserID).Msg("board session connected")
}

func (h *BoardHub) unregister(session *boardSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
	h.logger.Debug().Uint("user_id", session.options.UserID).Msg("board session disconnected")
}

// reader drains incoming frames until the peer disconnects. Mutations travel
// over the REST API, so inbound payloads are ignored; the read loop exists to
// detect the close.
func (s *boardSession) reader() {
	defer s.close()

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.hub.logger.Debug().Err(err).Msg("board read loop ended")
			return
		}
	}
}

func (s *boardSession) writer() {
	defer s.close()

	for {
		select {
		case event, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(event); err != nil {
				s.hub.logger.Debug().Err(err).Msg("board write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.hub.logger.Debug().Err(err).Msg("board ping failed")
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *boardSession) close() {
	s.once.Do(func() {
		close(s.closed)
		s.hub.unregister(s)
		_ = s.conn.Close()
	})
}
