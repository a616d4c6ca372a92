package domain

import (
	"time"

	"github.com/google/uuid"
)

type AdFormat string

const (
	FormatImage    AdFormat = "image"
	FormatVideo    AdFormat = "video"
	FormatCarousel AdFormat = "carousel"
	FormatText     AdFormat = "text"
	FormatHTML5    AdFormat = "html5"
)

type AdStatus string

const (
	AdStatusDraft    AdStatus = "draft"
	AdStatusActive   AdStatus = "active"
	AdStatusArchived AdStatus = "archived"
)

type Ad struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	TargetURL   string    `json:"targetUrl"`
	Format      AdFormat  `json:"format"`
	AIGenerated bool      `json:"aiGenerated"`
	Status      AdStatus  `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s AdStatus) Valid() bool {
	switch s {
	case AdStatusDraft, AdStatusActive, AdStatusArchived:
		return true
	}
	return false
}
