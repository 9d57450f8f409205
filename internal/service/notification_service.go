package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/observability"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

const notificationBufferSize = 16

// EventType names a lifecycle event delivered to users.
type EventType string

// Lifecycle events.
const (
	EventCourseCompleted         EventType = "course_completed"
	EventCertificateIssued       EventType = "certificate_issued"
	EventCertificateExpiringSoon EventType = "certificate_expiring_soon"
	EventCertificateExpired      EventType = "certificate_expired"
	EventRequestDecided          EventType = "request_decided"
	EventCertificateRenewed      EventType = "certificate_renewed"
	EventCertificateRevoked      EventType = "certificate_revoked"
)

// LifecycleEvent is emitted after a lifecycle transition has been committed.
type LifecycleEvent struct {
	Type         EventType
	EntityType   string
	EntityID     uint
	RecipientIDs []uint
	Message      string
	Payload      map[string]interface{}
}

// EventEmitter delivers lifecycle events to their recipients.
type EventEmitter interface {
	Emit(ctx context.Context, event LifecycleEvent) error
}

// NotificationService persists lifecycle notifications and streams them to end users via SSE.
type NotificationService interface {
	EventEmitter
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

// NewNotificationService constructs a notification service. Redis and NATS are optional fan-out transports.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-training-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker:      newNotificationBroker(),
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Emit stores one notification per distinct recipient, then pushes them to local
// subscribers and to the other nodes.
func (s *notificationService) Emit(ctx context.Context, event LifecycleEvent) error {
	if event.Type == "" {
		return errors.New("event type is required")
	}

	message := strings.TrimSpace(s.sanitizer.Sanitize(event.Message))
	if message == "" {
		message = string(event.Type)
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.type", string(event.Type)),
		attribute.String("notification.entity_type", event.EntityType),
		attribute.Int64("notification.entity_id", int64(event.EntityID)),
	}
	spanCtx, span := s.tracer.Start(ctx, "notifications.emit", trace.WithAttributes(attrs...))
	defer span.End()

	seen := make(map[uint]struct{}, len(event.RecipientIDs))
	notifications := make([]models.Notification, 0, len(event.RecipientIDs))
	for _, recipient := range event.RecipientIDs {
		if recipient == 0 {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		notifications = append(notifications, models.Notification{
			UserID:     strconv.FormatUint(uint64(recipient), 10),
			Type:       string(event.Type),
			EntityType: event.EntityType,
			EntityID:   event.EntityID,
			Message:    message,
			Payload:    datatypes.JSONMap(event.Payload),
		})
	}
	if len(notifications) == 0 {
		return nil
	}

	if err := s.repo.CreateBatch(spanCtx, notifications); err != nil {
		span.RecordError(err)
		return err
	}

	for _, notification := range notifications {
		response := dto.NewNotificationResponse(notification)
		s.broadcast(response)
		if err := s.publish(spanCtx, response); err != nil {
			s.logger.Warn().Err(err).Str("type", response.Type).Msg("failed to publish notification to broker")
		}
		observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()
	}

	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (dto.NotificationListResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.NotificationListResponse{}, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:  dto.NewNotificationResponseSlice(notifications),
		Unread: unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", userID),
	}
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(attrs...))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup
}

// emitEvent delivers an event and logs failures; emission never fails the calling operation.
func emitEvent(ctx context.Context, emitter EventEmitter, logger zerolog.Logger, event LifecycleEvent) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil {
		logger.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("entity_type", event.EntityType).
			Uint("entity_id", event.EntityID).
			Msg("failed to emit lifecycle event")
	}
}
