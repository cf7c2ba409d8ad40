package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"messaging-core/internal/auth"
	"messaging-core/internal/models"
	"messaging-core/internal/observability"
	"messaging-core/internal/repositories"
	"messaging-core/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options tunes per-connection behavior.
type Options struct {
	// OpTimeout bounds durable-store work for a single operation.
	OpTimeout time.Duration
	// SendBuffer is the outbound queue length per connection.
	SendBuffer int
	// OpRate/OpBurst limit inbound operations per connection.
	OpRate  float64
	OpBurst int
}

// DefaultOptions returns the tuning used when a field is left zero.
func DefaultOptions() Options {
	return Options{OpTimeout: 5 * time.Second, SendBuffer: 64, OpRate: 20, OpBurst: 40}
}

// Handler owns the messaging socket: it authenticates the handshake, joins
// the connection into its rooms, and dispatches the client-invocable
// operations.
type Handler struct {
	hub      *Hub
	verifier auth.Verifier
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	userRepo repositories.UserRepository
	audit    *telemetry.AuditEmitter
	opts     Options
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, verifier auth.Verifier, convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter, opts Options) *Handler {
	def := DefaultOptions()
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = def.OpTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.OpRate <= 0 {
		opts.OpRate = def.OpRate
	}
	if opts.OpBurst <= 0 {
		opts.OpBurst = def.OpBurst
	}
	return &Handler{
		hub:      hub,
		verifier: verifier,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		audit:    audit,
		opts:     opts,
	}
}

// Handle authenticates, upgrades, and registers the connection. The
// credential check runs exactly once here; a failure refuses the handshake
// before any Connection state exists.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-core/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	requestID := observability.RequestIDFromRequest(c.Request)
	token, supplied := bearerToken(c)
	if !supplied {
		h.audit.Emit(ctx, "WARN", models.CodeMissingCredential, "handshake without credential", requestID, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credential", "code": models.CodeMissingCredential})
		return
	}
	if token == "" {
		h.audit.Emit(ctx, "WARN", models.CodeInvalidCredential, "handshake credential rejected", requestID, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential", "code": models.CodeInvalidCredential})
		return
	}

	userID, err := h.verifier.Verify(ctx, token)
	if err != nil {
		code := models.CodeInvalidCredential
		if errors.Is(err, auth.ErrMissingCredential) {
			code = models.CodeMissingCredential
		}
		h.audit.Emit(ctx, "WARN", code, "handshake credential rejected", requestID, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential", "code": code})
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(userID, conn, h.opts.SendBuffer, h.opts.OpRate, h.opts.OpBurst, observability.IPFromRequest(c.Request))
	h.register(ctx, client)

	go client.writePump()
	go h.readPump(client)
}

// register performs the bulk room join: the user room unconditionally, then
// every conversation the user belongs to. A failed membership load keeps the
// connection alive with the user room only.
func (h *Handler) register(ctx context.Context, client *Client) {
	h.hub.Join(UserRoom(client.UserID), client)

	loadCtx, cancel := context.WithTimeout(context.Background(), h.opts.OpTimeout)
	defer cancel()
	conversationIDs, err := h.convRepo.FindUserConversations(loadCtx, client.UserID)
	if err != nil {
		log.Printf("bulk join: loading conversations for user %d: %v", client.UserID, err)
		observability.IncWSEvent("bulk_join_failed")
	}
	for _, id := range conversationIDs {
		h.hub.Join(ConversationRoom(id), client)
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws.lifecycle", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: observability.WSEventPayload{
			ConnID: client.ID,
			UserID: client.UserID,
			Event:  "ws_connect",
			IP:     client.ip,
		},
	})
}

// readPump processes inbound frames strictly in arrival order and tears the
// connection down on transport close. Disconnect never mutates durable
// state: only the live addressability goes away.
func (h *Handler) readPump(client *Client) {
	var closeReason string
	defer func() {
		h.hub.LeaveAll(client)
		client.close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(context.Background(), "ws.lifecycle", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload: observability.WSEventPayload{
				ConnID:     client.ID,
				UserID:     client.UserID,
				Event:      "ws_disconnect",
				DurationMS: time.Since(client.connectedAt).Milliseconds(),
				Reason:     closeReason,
			},
		})
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		h.dispatch(client, raw)
	}
}

// dispatch routes one inbound frame to its operation handler and reports any
// failure as a single error event to this connection only.
func (h *Handler) dispatch(client *Client, raw []byte) {
	if !client.limiter.Allow() {
		h.sendOpError(client, errRateLimited())
		return
	}

	var cmd models.ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Event == "" {
		h.sendOpError(client, errBadPayload())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.OpTimeout)
	defer cancel()

	var err error
	switch cmd.Event {
	case models.EventMessageSend:
		err = h.handleSendMessage(ctx, client, cmd.Data)
	case models.EventMessageRead:
		err = h.handleMarkRead(ctx, client, cmd.Data)
	case models.EventJoinConversation:
		err = h.handleJoinConversation(ctx, client, cmd.Data)
	case models.EventLeaveConversation:
		err = h.handleLeaveConversation(client, cmd.Data)
	default:
		err = errBadPayload()
	}

	if err != nil {
		var opErr *opError
		if !errors.As(err, &opErr) {
			log.Printf("op %s failed: %v", cmd.Event, err)
			opErr = errPersistenceFailed()
		}
		h.sendOpError(client, opErr)
	}
}

// handleSendMessage is the message pipeline: validate, authorize, persist
// message plus receipts transactionally, then fan out. Nothing is broadcast
// unless the transaction committed.
func (h *Handler) handleSendMessage(ctx context.Context, client *Client, data json.RawMessage) error {
	ctx, span := otel.Tracer("messaging-core/ws").Start(ctx, "message.send")
	defer span.End()

	var payload models.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == 0 {
		return errBadPayload()
	}

	// A literal JSON null is captured by RawMessage; treat it as absent so
	// it neither passes the emptiness check nor gets persisted.
	if string(bytes.TrimSpace(payload.Attachment)) == "null" {
		payload.Attachment = nil
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" && len(payload.Attachment) == 0 {
		return errEmptyMessage()
	}

	member, err := h.convRepo.IsMember(ctx, client.UserID, payload.ConversationID)
	if err != nil {
		return err
	}
	if !member {
		h.auditDenied(ctx, client, payload.ConversationID)
		return errNotMember()
	}

	start := time.Now()
	msg, err := h.msgRepo.CreateWithReceipts(ctx, payload.ConversationID, client.UserID, content, payload.Attachment)
	if err != nil {
		return err
	}
	observability.ObservePersistDuration(time.Since(start))
	span.SetAttributes(attribute.Int("message.id", msg.ID))

	sender, err := h.userRepo.GetProfile(ctx, client.UserID)
	if err != nil {
		// The message is durable at this point; a profile miss must not
		// suppress the broadcast.
		log.Printf("sender profile lookup for user %d: %v", client.UserID, err)
		sender = models.UserProfile{ID: client.UserID}
	}

	h.hub.Broadcast(ConversationRoom(payload.ConversationID), models.ServerEvent{
		Event: models.EventMessageNew,
		Data:  models.NewMessageEvent{Message: msg, Sender: sender},
	})
	observability.IncWSEvent("message_sent")
	return nil
}

// handleMarkRead is the receipt tracker: membership-scoped lookup, monotonic
// receipt update, and a sender-only notification on a real transition.
func (h *Handler) handleMarkRead(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == 0 {
		return errBadPayload()
	}

	msg, err := h.msgRepo.FindForMember(ctx, payload.MessageID, client.UserID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return errMessageNotFound()
	}
	if err != nil {
		return err
	}

	changed, err := h.msgRepo.MarkReceiptRead(ctx, msg.ID, client.UserID)
	if err != nil {
		return err
	}
	if changed && msg.SenderID != client.UserID {
		h.hub.Broadcast(UserRoom(msg.SenderID), models.ServerEvent{
			Event: models.EventMessageRead,
			Data: models.ReadEvent{
				MessageID: msg.ID,
				UserID:    client.UserID,
				Timestamp: time.Now().UTC(),
			},
		})
	}
	observability.IncWSEvent("message_read")
	return nil
}

// handleJoinConversation re-authorizes and subscribes; the acknowledgment
// goes to the caller only.
func (h *Handler) handleJoinConversation(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.ConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == 0 {
		return errBadPayload()
	}

	member, err := h.convRepo.IsMember(ctx, client.UserID, payload.ConversationID)
	if err != nil {
		return err
	}
	if !member {
		h.auditDenied(ctx, client, payload.ConversationID)
		return errNotMember()
	}

	h.hub.Join(ConversationRoom(payload.ConversationID), client)
	client.Send(models.ServerEvent{
		Event: models.EventConversationJoined,
		Data:  models.ConversationPayload{ConversationID: payload.ConversationID},
	})
	return nil
}

// handleLeaveConversation needs no authorization: leaving is always safe.
func (h *Handler) handleLeaveConversation(client *Client, data json.RawMessage) error {
	var payload models.ConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == 0 {
		return errBadPayload()
	}

	h.hub.Leave(ConversationRoom(payload.ConversationID), client)
	return nil
}

func (h *Handler) sendOpError(client *Client, opErr *opError) {
	observability.IncWSEvent("op_error")
	client.Send(models.ServerEvent{
		Event: models.EventError,
		Data:  models.ErrorEvent{Code: opErr.code, Message: opErr.message},
	})
}

func (h *Handler) auditDenied(ctx context.Context, client *Client, conversationID int) {
	userID := client.UserID
	h.audit.Emit(ctx, "WARN", models.CodeNotMember,
		"operation denied on conversation "+ConversationRoom(conversationID), client.ID, &userID)
}

// bearerToken extracts the handshake credential. The second return reports
// whether any credential was supplied at all: a present-but-malformed
// Authorization header is a supplied (invalid) credential, not a missing one.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], true
		}
		return "", true
	}
	token := c.Query("token")
	return token, token != ""
}
