package chat

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vizit/models"
)

// SessionAPI is the slice of the marketplace API a chat session needs.
type SessionAPI interface {
	GetMessages(ctx context.Context, visitID string, page, limit int) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, visitID, content string) (*models.ChatMessage, error)
	SendImageMessage(ctx context.Context, visitID string, image io.Reader, filename string) (*models.ChatMessage, error)
	MarkMessagesRead(ctx context.Context, visitID string) error
	GetUnreadCount(ctx context.Context, visitID string) (int, error)
}

// Subscriber hands out per-visit live event streams. Satisfied by the
// realtime channel.
type Subscriber interface {
	Subscribe(visitID string) chan models.ChatEvent
	Unsubscribe(visitID string, sub chan models.ChatEvent)
}

// Session is the per-visit message stream. Live events and the polling
// fallback are two producers feeding one idempotent sink deduplicated by
// message id; ordering between the two is not guaranteed and does not
// matter.
type Session struct {
	VisitID string

	client  SessionAPI
	channel Subscriber
	logger  *zap.Logger
	opts    SessionOptions
	limiter *rate.Limiter

	mu          sync.Mutex
	byID        map[string]models.ChatMessage
	unread      int
	unreadKnown bool

	cancel context.CancelFunc
	sub    chan models.ChatEvent
	wg     sync.WaitGroup
}
