package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/noah-isme/gema-training-api/internal/dto"
)

// notificationEvent is the envelope exchanged between API nodes.
type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// notificationBroker fans notifications out to the SSE subscribers of this node.
type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

func newNotificationBroker() *notificationBroker {
	return &notificationBroker{subscribers: make(map[string]map[chan dto.NotificationResponse]struct{})}
}

func (b *notificationBroker) subscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[userID]
	if !ok {
		return
	}
	if _, ok := subscribers[ch]; !ok {
		return
	}
	delete(subscribers, ch)
	close(ch)
	if len(subscribers) == 0 {
		delete(b.subscribers, userID)
	}
}

// deliver hands the notification to every stream of its recipient and returns
// how many streams were too slow to take it.
func (b *notificationBroker) deliver(notification dto.NotificationResponse) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for ch := range b.subscribers[notification.UserID] {
		select {
		case ch <- notification:
		default:
			dropped++
		}
	}
	return dropped
}

func (s *notificationService) broadcast(notification dto.NotificationResponse) {
	if dropped := s.broker.deliver(notification); dropped > 0 {
		s.logger.Warn().
			Str("user_id", notification.UserID).
			Str("type", notification.Type).
			Int("dropped", dropped).
			Msg("notification stream buffer full")
	}
}

// natsEventSubject scopes the subject by event type so consumers can follow,
// say, "<base>.certificate_expiring_soon" alone.
func (s *notificationService) natsEventSubject(eventType string) string {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		eventType = "unknown"
	}
	return s.natsSubject + "." + eventType
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsEventSubject(notification.Type), payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("notification redis subscription closed")
			}
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject+".>", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", s.natsSubject).Msg("failed to subscribe to notification subjects")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification subscription")
		}
	}()
}

// handleEvent relays notifications emitted by other nodes to local streams.
func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}
	if event.Source == s.nodeID {
		return
	}
	s.broadcast(event.Notification)
}
