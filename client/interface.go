package client

import (
	"context"
	"io"

	"vizit/models"
)

// API is the marketplace backend contract the engine consumes. All state
// persistence lives behind it; the engine only orchestrates.
type API interface {
	// Availability.
	GetAvailability(ctx context.Context, providerID, startDate, endDate string) (*models.AvailabilityResponse, error)

	// Visits.
	CreateVisit(ctx context.Context, input models.CreateVisitInput) (*models.Visit, error)
	GetVisit(ctx context.Context, visitID string) (*models.Visit, error)
	UpdateVisitStatus(ctx context.Context, visitID string, body StatusUpdate) (*models.Visit, error)
	RescheduleVisit(ctx context.Context, visitID, date, timeOfDay string) (*models.Visit, error)
	CancelVisit(ctx context.Context, visitID, reason string) (*models.Visit, error)
	CompleteVisit(ctx context.Context, visitID, notes string) (*models.Visit, error)
	DeleteVisit(ctx context.Context, visitID string) error
	GetVisitHistory(ctx context.Context, visitID string) ([]models.VisitHistoryEntry, error)

	// Chat.
	GetMessages(ctx context.Context, visitID string, page, limit int) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, visitID, content string) (*models.ChatMessage, error)
	SendImageMessage(ctx context.Context, visitID string, image io.Reader, filename string) (*models.ChatMessage, error)
	MarkMessagesRead(ctx context.Context, visitID string) error
	GetUnreadCount(ctx context.Context, visitID string) (int, error)

	// Auth.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// StatusUpdate is the body for PUT /visits/{id}/status.
type StatusUpdate struct {
	Status        string `json:"status"`
	ConfirmedDate string `json:"confirmed_date,omitempty"`
	ConfirmedTime string `json:"confirmed_time,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// TokenPair is the response of POST /auth/refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
