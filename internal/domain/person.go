package domain

import "github.com/google/uuid"

// Color is used for both eye and hair color.
type Color string

const (
	ColorGreen  Color = "GREEN"
	ColorRed    Color = "RED"
	ColorBlack  Color = "BLACK"
	ColorWhite  Color = "WHITE"
	ColorBrown  Color = "BROWN"
	ColorYellow Color = "YELLOW"
)

// Valid reports whether the value is a known color.
func (c Color) Valid() bool {
	switch c {
	case ColorGreen, ColorRed, ColorBlack, ColorWhite, ColorBrown, ColorYellow:
		return true
	}
	return false
}

// Country is the nationality of a person.
type Country string

const (
	CountryRussia       Country = "RUSSIA"
	CountryFrance       Country = "FRANCE"
	CountrySpain        Country = "SPAIN"
	CountryIndia        Country = "INDIA"
	CountryNorthKorea   Country = "NORTH_KOREA"
	CountrySouthKorea   Country = "SOUTH_KOREA"
	CountryUnitedStates Country = "USA"
)

// Valid reports whether the value is a known country.
func (c Country) Valid() bool {
	switch c {
	case CountryRussia, CountryFrance, CountrySpain, CountryIndia,
		CountryNorthKorea, CountrySouthKorea, CountryUnitedStates:
		return true
	}
	return false
}

// Location is where a person lives.
type Location struct {
	X int     `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Person owns tickets. PassportID is unique across the system.
type Person struct {
	ID          uuid.UUID `json:"id"`
	PassportID  string    `json:"passportID"`
	Weight      float64   `json:"weight"`
	Nationality Country   `json:"nationality"`
	HairColor   Color     `json:"hairColor"`
	EyeColor    Color     `json:"eyeColor,omitempty"`
	Location    *Location `json:"location,omitempty"`
}
