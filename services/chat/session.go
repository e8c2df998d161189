package chat

import (
	"context"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vizit/models"
	"vizit/utils"
)

const defaultPageLimit = 50

// SessionOptions tunes the polling fallback.
type SessionOptions struct {
	MessagePollInterval time.Duration
	UnreadPollInterval  time.Duration
	PollsPerMinute      int
	PollBurst           int
}

// NewSession builds a session for one visit. Call Start to attach the live
// stream and pollers; reads work without Start, just without freshness.
func NewSession(api SessionAPI, channel Subscriber, visitID string, opts SessionOptions) *Session {
	if opts.MessagePollInterval <= 0 {
		opts.MessagePollInterval = 10 * time.Second
	}
	if opts.UnreadPollInterval <= 0 {
		opts.UnreadPollInterval = 5 * time.Second
	}
	if opts.PollsPerMinute <= 0 {
		opts.PollsPerMinute = 30
	}
	if opts.PollBurst <= 0 {
		opts.PollBurst = 3
	}
	return &Session{
		VisitID: visitID,
		client:  api,
		channel: channel,
		logger:  utils.GetLogger(),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PollsPerMinute)), opts.PollBurst),
		byID:    make(map[string]models.ChatMessage),
	}
}

// Start attaches to the live channel and launches both pollers. The message
// poller is a correctness fallback for events the live channel misses; the
// unread poller runs on a shorter interval because it is cheaper and drives
// a badge.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := s.channel.Subscribe(s.VisitID)
	s.cancel = cancel
	s.sub = sub
	s.mu.Unlock()

	s.wg.Add(3)
	go s.liveLoop(ctx, sub)
	go s.pollLoop(ctx, s.opts.MessagePollInterval, s.refreshMessages)
	go s.pollLoop(ctx, s.opts.UnreadPollInterval, s.refreshUnread)
}

// Close detaches from the channel and cancels the pollers. No timers
// outlive the session.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	sub := s.sub
	s.cancel = nil
	s.sub = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.channel.Unsubscribe(s.VisitID, sub)
	s.wg.Wait()
}

func (s *Session) liveLoop(ctx context.Context, sub chan models.ChatEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *Session) handleEvent(event models.ChatEvent) {
	switch event.Type {
	case models.EventMessage:
		if event.Message != nil {
			s.ingest([]models.ChatMessage{*event.Message})
			s.invalidateUnread()
		}
	case models.EventRead:
		s.mu.Lock()
		for id, msg := range s.byID {
			msg.IsRead = true
			s.byID[id] = msg
		}
		s.unreadKnown = false
		s.mu.Unlock()
	}
}

func (s *Session) pollLoop(ctx context.Context, interval time.Duration, tick func(context.Context) error) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.limiter.Allow() {
				continue
			}
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Debug("chat poll failed",
					zap.String("visitID", s.VisitID), zap.Error(err))
			}
		}
	}
}

func (s *Session) refreshMessages(ctx context.Context) error {
	messages, err := s.client.GetMessages(ctx, s.VisitID, 1, defaultPageLimit)
	if err != nil {
		return err
	}
	s.ingest(messages)
	return nil
}

func (s *Session) refreshUnread(ctx context.Context) error {
	count, err := s.client.GetUnreadCount(ctx, s.VisitID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unread = count
	s.unreadKnown = true
	s.mu.Unlock()
	return nil
}

// Messages returns one page merged through the dedupe sink, oldest-first.
func (s *Session) Messages(ctx context.Context, page, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	messages, err := s.client.GetMessages(ctx, s.VisitID, page, limit)
	if err != nil {
		return nil, err
	}
	s.ingest(messages)
	return s.snapshot(), nil
}

// Send posts a text message. No local message is fabricated; the server
// echo lands through ingest and both caches are invalidated so the next
// read refetches.
func (s *Session) Send(ctx context.Context, content string) (*models.ChatMessage, error) {
	if len(content) == 0 {
		return nil, &utils.ValidationError{Field: "content", Message: "message content is empty"}
	}
	msg, err := s.client.SendMessage(ctx, s.VisitID, content)
	if err != nil {
		return nil, err
	}
	s.afterSend(msg)
	return msg, nil
}

// SendImage posts an image message via multipart upload.
func (s *Session) SendImage(ctx context.Context, image io.Reader, filename string) (*models.ChatMessage, error) {
	msg, err := s.client.SendImageMessage(ctx, s.VisitID, image, filename)
	if err != nil {
		return nil, err
	}
	s.afterSend(msg)
	return msg, nil
}

func (s *Session) afterSend(echo *models.ChatMessage) {
	s.invalidateUnread()
	if echo != nil {
		s.ingest([]models.ChatMessage{*echo})
	}
}

// MarkAsRead flips the read flag for the whole visit. Monotonic: cached
// messages only ever move unread -> read.
func (s *Session) MarkAsRead(ctx context.Context) error {
	if err := s.client.MarkMessagesRead(ctx, s.VisitID); err != nil {
		return err
	}
	s.mu.Lock()
	for id, msg := range s.byID {
		msg.IsRead = true
		s.byID[id] = msg
	}
	s.unread = 0
	s.unreadKnown = true
	s.mu.Unlock()
	return nil
}

// UnreadCount returns the badge value, from cache when fresh.
func (s *Session) UnreadCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.unreadKnown {
		count := s.unread
		s.mu.Unlock()
		return count, nil
	}
	s.mu.Unlock()
	if err := s.refreshUnread(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, nil
}

// ingest merges messages into the sink. Duplicate ids collapse; the read
// flag only ever moves forward.
func (s *Session) ingest(messages []models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		if msg.ID == "" {
			continue
		}
		if existing, ok := s.byID[msg.ID]; ok {
			if existing.IsRead {
				msg.IsRead = true
			}
		}
		s.byID[msg.ID] = msg
	}
}

func (s *Session) invalidateUnread() {
	s.mu.Lock()
	s.unreadKnown = false
	s.mu.Unlock()
}

// snapshot returns the cached messages ordered oldest-first.
func (s *Session) snapshot() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, 0, len(s.byID))
	for _, msg := range s.byID {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
