package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"vizit/client"
	"vizit/config"
	"vizit/realtime"
	"vizit/services/availability"
	"vizit/services/chat"
	"vizit/services/visit"
	"vizit/utils"
)

// App is the composition root: it constructs and owns every service
// instance, including the realtime channel. Callers receive handles and
// never reach into shared globals.
type App struct {
	Config config.Config
	Tokens *utils.TokenStore

	API          *client.RestAPI
	Availability *availability.DefaultResolver
	Visits       *visit.DefaultVisitService
	Channel      *realtime.Channel

	mu       sync.Mutex
	sessions map[string]*chat.Session
	logger   *zap.Logger
}

// New wires the engine against the configured marketplace endpoints. The
// token store observer keeps the channel connected across credential
// refreshes: a new access token reconnects, a cleared store disconnects.
func New(cfg config.Config, tokens *utils.TokenStore) *App {
	logger := utils.GetLogger()

	api := client.NewRestAPI(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout()}, tokens)
	resolver := availability.NewResolver(api, tokens, cfg.SlotGranularityMin, cfg.HeavyLoadThreshold)
	visits := visit.NewService(api, resolver)
	channel := realtime.NewChannel(realtime.Options{
		URL:                  cfg.RealtimeURL,
		ConnectTimeout:       cfg.ConnectTimeout(),
		ReconnectMaxAttempts: cfg.ReconnectMaxAttempts,
	}, api, tokens)

	a := &App{
		Config:       cfg,
		Tokens:       tokens,
		API:          api,
		Availability: resolver,
		Visits:       visits,
		Channel:      channel,
		sessions:     make(map[string]*chat.Session),
		logger:       logger,
	}

	tokens.OnChange(func(access string) {
		if access == "" {
			channel.Disconnect()
			return
		}
		if _, err := channel.Connect(access); err != nil {
			logger.Warn("realtime reconnect after token change failed", zap.Error(err))
		}
	})

	return a
}

// Connect brings the live channel up with the current credential.
func (a *App) Connect() error {
	token := a.Tokens.Access()
	if token == "" {
		return &utils.AuthExpiredError{Message: "no access token; sign in first"}
	}
	_, err := a.Channel.Connect(token)
	return err
}

// ChatSession returns the session for a visit, creating and starting it on
// first use. Sessions are shared so two subscribers of the same visit feed
// one dedupe sink.
func (a *App) ChatSession(ctx context.Context, visitID string) *chat.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[visitID]; ok {
		return s
	}
	s := chat.NewSession(a.API, a.Channel, visitID, chat.SessionOptions{
		MessagePollInterval: time.Duration(a.Config.MessagePollSec) * time.Second,
		UnreadPollInterval:  time.Duration(a.Config.UnreadPollSec) * time.Second,
		PollsPerMinute:      a.Config.PollsPerMinute,
		PollBurst:           a.Config.PollBurst,
	})
	s.Start(ctx)
	a.sessions[visitID] = s
	return s
}

// CloseChatSession stops and forgets a visit's session.
func (a *App) CloseChatSession(visitID string) {
	a.mu.Lock()
	s, ok := a.sessions[visitID]
	delete(a.sessions, visitID)
	a.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close tears everything down: sessions first, then the channel.
func (a *App) Close() {
	a.mu.Lock()
	sessions := make([]*chat.Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.sessions = make(map[string]*chat.Session)
	a.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	a.Channel.Disconnect()
}
