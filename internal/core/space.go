package core

import "github.com/google/uuid"

// SpacePublic is the public profile of a space, owned by the spaces service.
type SpacePublic struct {
	ID                uuid.UUID `json:"id" db:"id"`
	SpaceName         string    `json:"space_name" db:"space_name"`
	Slug              string    `json:"slug" db:"slug"`
	LogoURL           *string   `json:"logo_url,omitempty" db:"logo_url"`
	HeaderTitle       string    `json:"header_title" db:"header_title"`
	CustomMessage     *string   `json:"custom_message,omitempty" db:"custom_message"`
	CollectStarRating bool      `json:"collect_star_rating" db:"collect_star_rating"`
}
