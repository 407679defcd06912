package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/attendance-beacon/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Session events
	SessionCreated = "session.created"
	SessionExpired = "session.expired"

	// Attendance events
	AttendanceRecorded = "attendance.recorded"
	AttendanceRejected = "attendance.rejected"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type SessionCreatedEvent struct {
	EventID     string    `json:"event_id"`
	EventTitle  string    `json:"event_title"`
	OrgID       int64     `json:"org_id"`
	OrgSlug     string    `json:"org_slug"`
	TokenDigest string    `json:"token_digest"`
	EntropyBits float64   `json:"entropy_bits"`
	StartsAt    time.Time `json:"starts_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SessionExpiredEvent struct {
	Deleted   int64     `json:"deleted"`
	OlderThan string    `json:"older_than"`
	ExpiredAt time.Time `json:"expired_at"`
}

type AttendanceRecordedEvent struct {
	AttendanceID string    `json:"attendance_id"`
	EventID      string    `json:"event_id"`
	EventTitle   string    `json:"event_title"`
	MemberID     int64     `json:"member_id"`
	OrgSlug      string    `json:"org_slug"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type AttendanceRejectedEvent struct {
	TokenDigest string    `json:"token_digest"`
	MemberID    int64     `json:"member_id"`
	Code        string    `json:"code"`
	RejectedAt  time.Time `json:"rejected_at"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}
