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
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/observability"
	"github.com/noah-isme/therapy-api/internal/repository"
)

const (
	relaySendBufferSize = 32
	relayReadLimit      = 64 << 10
	relayPingInterval   = 30 * time.Second
	relayStudentPrefix  = "student:"
	relayUserPrefix     = "user:"
)

var (
	// ErrRoomInvalid indicates a room name outside the known namespaces.
	ErrRoomInvalid = errors.New("invalid room")
	// ErrRoomForbidden indicates the caller may not join the room.
	ErrRoomForbidden = errors.New("not allowed to join room")
	// ErrNotRoomMember indicates a send into a room the caller has not joined.
	ErrNotRoomMember = errors.New("not a member of room")
)

// RelayConnectionOptions carries the identity resolved during the HTTP upgrade.
type RelayConnectionOptions struct {
	Principal     access.Principal
	CorrelationID string
	Context       context.Context
}

// RelayService fans chat frames out to websocket clients grouped in rooms.
// Nothing is persisted.
type RelayService interface {
	ServeConnection(conn *websocket.Conn, opts RelayConnectionOptions)
	Start(ctx context.Context)
}

type relayService struct {
	gate        studentGate
	redis       *redis.Client
	channel     string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *relayHub
	nodeID      string
	now         func() time.Time
}

// relayHub tracks room membership of connected clients.
type relayHub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*relayClient]struct{}
	joined map[*relayClient]map[string]struct{}
	log    zerolog.Logger
}

type relayClient struct {
	conn    *websocket.Conn
	send    chan dto.RelayServerFrame
	options RelayConnectionOptions
	service *relayService
	closed  chan struct{}
	once    sync.Once
}

type relayEvent struct {
	Source string               `json:"source"`
	Frame  dto.RelayServerFrame `json:"frame"`
}

// RelayFanout configures cross-node delivery. NATS is preferred when both
// transports are present so every frame crosses the wire once.
type RelayFanout struct {
	Redis   *redis.Client
	NATS    *nats.Conn
	Channel string
}

// NewRelayService creates the websocket relay.
func NewRelayService(students repository.StudentRepository, fanout RelayFanout, logger zerolog.Logger) RelayService {
	hub := &relayHub{
		rooms:  make(map[string]map[*relayClient]struct{}),
		joined: make(map[*relayClient]map[string]struct{}),
		log:    logger.With().Str("component", "relay_hub").Logger(),
	}

	service := &relayService{
		gate:      studentGate{students: students},
		logger:    logger.With().Str("component", "relay_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/therapy-api/internal/service/relay"),
		sanitizer: bluemonday.StrictPolicy(),
		hub:       hub,
		nodeID:    uuid.NewString(),
		now:       time.Now,
	}

	if fanout.Channel != "" {
		switch {
		case fanout.NATS != nil:
			service.nats = fanout.NATS
			service.natsSubject = strings.ReplaceAll(fanout.Channel, ":", ".")
		case fanout.Redis != nil:
			service.redis = fanout.Redis
			service.channel = fanout.Channel
		}
	}

	return service
}

func (s *relayService) Start(ctx context.Context) {
	if s.nats != nil {
		go s.consumeNATS(ctx)
		return
	}
	if s.redis != nil {
		go s.consumeRedis(ctx)
	}
}

func (s *relayService) ServeConnection(conn *websocket.Conn, opts RelayConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	client := &relayClient{
		conn:    conn,
		send:    make(chan dto.RelayServerFrame, relaySendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	conn.SetReadLimit(relayReadLimit)
	observability.RelayConnections().Inc()
	defer observability.RelayConnections().Dec()

	go client.writer()
	client.reader()
}

func (s *relayService) handleFrame(client *relayClient, frame dto.RelayClientFrame) {
	ctx := client.options.Context
	room := strings.TrimSpace(frame.RoomID)

	switch frame.Event {
	case dto.RelayEventJoinRoom:
		if err := s.authorizeRoom(ctx, client.options.Principal, room); err != nil {
			client.deliver(errorFrame(room, err))
			return
		}
		s.hub.join(client, room)
		observability.RelayMessages().WithLabelValues(frame.Event).Inc()
		client.deliver(dto.RelayServerFrame{Event: dto.RelayEventJoined, RoomID: room})
	case dto.RelayEventLeaveRoom:
		s.hub.leave(client, room)
		observability.RelayMessages().WithLabelValues(frame.Event).Inc()
		client.deliver(dto.RelayServerFrame{Event: dto.RelayEventLeft, RoomID: room})
	case dto.RelayEventSendMessage:
		if err := s.send(ctx, client, room, frame.Message); err != nil {
			client.deliver(errorFrame(room, err))
		}
	default:
		client.deliver(errorFrame(room, errors.New("unknown event")))
	}
}

func (s *relayService) send(ctx context.Context, client *relayClient, room string, raw json.RawMessage) error {
	if !s.hub.member(client, room) {
		return ErrNotRoomMember
	}

	if len(raw) == 0 || string(raw) == "null" {
		return errors.New("message required")
	}

	var message interface{}
	if err := json.Unmarshal(raw, &message); err != nil {
		return errors.New("message must be valid json")
	}

	sender := client.options.Principal.UserID
	attrs := []attribute.KeyValue{
		attribute.String("relay.room_id", room),
		attribute.String("relay.sender_id", sender.String()),
	}
	if client.options.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", client.options.CorrelationID))
	}

	spanCtx, span := s.tracer.Start(ctx, "relay.broadcast", trace.WithAttributes(attrs...))
	defer span.End()

	sentAt := s.now().UTC()
	frame := dto.RelayServerFrame{
		Event:    dto.RelayEventNewMessage,
		RoomID:   room,
		SenderID: &sender,
		Message:  s.sanitize(message),
		SentAt:   &sentAt,
	}

	s.hub.broadcast(room, frame)
	observability.RelayMessages().WithLabelValues(dto.RelayEventSendMessage).Inc()

	if err := s.publish(spanCtx, frame); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("room_id", room).Msg("failed to publish relay event")
	}
	return nil
}

// authorizeRoom decides whether the principal may join a room.
func (s *relayService) authorizeRoom(ctx context.Context, principal access.Principal, room string) error {
	var namespace, rawID string
	switch {
	case strings.HasPrefix(room, relayStudentPrefix):
		namespace, rawID = relayStudentPrefix, strings.TrimPrefix(room, relayStudentPrefix)
	case strings.HasPrefix(room, relayUserPrefix):
		namespace, rawID = relayUserPrefix, strings.TrimPrefix(room, relayUserPrefix)
	default:
		return ErrRoomInvalid
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return ErrRoomInvalid
	}

	if principal.Role == access.RoleSystemAdmin {
		return nil
	}

	if namespace == relayUserPrefix {
		if id == principal.UserID {
			return nil
		}
		return ErrRoomForbidden
	}

	if _, err := s.gate.readable(ctx, principal, id); err != nil {
		if errors.Is(err, ErrStudentNotFound) || errors.Is(err, ErrForbidden) {
			return ErrRoomForbidden
		}
		return err
	}
	return nil
}

// sanitize strips markup from every string inside a decoded JSON value.
func (s *relayService) sanitize(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return s.sanitizer.Sanitize(v)
	case []interface{}:
		for i := range v {
			v[i] = s.sanitize(v[i])
		}
		return v
	case map[string]interface{}:
		for key, item := range v {
			v[key] = s.sanitize(item)
		}
		return v
	default:
		return v
	}
}

func (s *relayService) publish(ctx context.Context, frame dto.RelayServerFrame) error {
	if s.nats == nil && s.redis == nil {
		return nil
	}

	payload, err := json.Marshal(relayEvent{Source: s.nodeID, Frame: frame})
	if err != nil {
		return err
	}

	if s.nats != nil {
		return s.nats.Publish(s.natsSubject, payload)
	}
	return s.redis.Publish(ctx, s.channel, payload).Err()
}

func (s *relayService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.channel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("relay redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *relayService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to relay subject")
		return
	}
	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to drain relay subscription")
	}
}

func (s *relayService) handleEvent(data []byte) {
	var event relayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid relay event")
		return
	}

	if event.Source == s.nodeID || event.Frame.Event != dto.RelayEventNewMessage {
		return
	}

	s.hub.broadcast(event.Frame.RoomID, event.Frame)
}

func errorFrame(room string, err error) dto.RelayServerFrame {
	return dto.RelayServerFrame{Event: dto.RelayEventError, RoomID: room, Error: err.Error()}
}

func (h *relayHub) join(client *relayClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*relayClient]struct{})
	}
	h.rooms[room][client] = struct{}{}

	if _, ok := h.joined[client]; !ok {
		h.joined[client] = make(map[string]struct{})
	}
	h.joined[client][room] = struct{}{}
	h.log.Debug().Str("room_id", room).Str("user_id", client.options.Principal.UserID.String()).Msg("relay client joined")
}

func (h *relayHub) leave(client *relayClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client, room)
}

func (h *relayHub) leaveAll(client *relayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.joined[client] {
		h.removeLocked(client, room)
	}
	delete(h.joined, client)
}

func (h *relayHub) removeLocked(client *relayClient, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.joined[client]; ok {
		delete(rooms, room)
	}
}

func (h *relayHub) member(client *relayClient, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.joined[client][room]
	return ok
}

func (h *relayHub) broadcast(room string, frame dto.RelayServerFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- frame:
		default:
			observability.RelayDropped().Inc()
			h.log.Warn().Str("room_id", room).Str("user_id", client.options.Principal.UserID.String()).Msg("dropping relay frame for slow client")
		}
	}
}

func (c *relayClient) deliver(frame dto.RelayServerFrame) {
	select {
	case <-c.closed:
	case c.send <- frame:
	default:
		observability.RelayDropped().Inc()
	}
}

func (c *relayClient) reader() {
	defer c.close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.service.logger.Debug().Err(err).Msg("relay read loop ended")
			return
		}

		// Undecodable payloads, empty ones included, are answered and the
		// connection stays open.
		var frame dto.RelayClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.deliver(errorFrame("", errors.New("frame must be a json object")))
			continue
		}

		c.service.handleFrame(c, frame)
	}
}

func (c *relayClient) writer() {
	defer c.close()

	ticker := time.NewTicker(relayPingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteJSON(frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("relay write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("relay ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *relayClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.leaveAll(c)
		_ = c.conn.Close()
	})
}
