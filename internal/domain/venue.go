package domain

import "github.com/google/uuid"

// VenueType is the category of a venue.
type VenueType string

const (
	VenueTypeStadium  VenueType = "STADIUM"
	VenueTypeLoft     VenueType = "LOFT"
	VenueTypeOpenArea VenueType = "OPEN_AREA"
)

// Valid reports whether the value is a known venue type.
func (v VenueType) Valid() bool {
	switch v {
	case VenueTypeStadium, VenueTypeLoft, VenueTypeOpenArea:
		return true
	}
	return false
}

// Venue is where an event takes place.
type Venue struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Capacity int       `json:"capacity"`
	Type     VenueType `json:"type,omitempty"`
}
