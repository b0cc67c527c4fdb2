package models

import "time"

// Location statuses as persisted in locatii.status.
const (
	StatusAvailable = "Disponibil"
	StatusReserved  = "Rezervat"
	StatusRented    = "Închiriat"
	StatusExpired   = "Expirat"
)

// Client types.
const (
	ClientDirect = "direct"
	ClientAgency = "agency"
)

const (
	// DefaultMaxMobileUnits is how many children of one template may be rented over a range.
	DefaultMaxMobileUnits = 20

	// DefaultHoldDays is the length of a hold placed through Reserve.
	DefaultHoldDays = 5

	// DefaultCacheTTL is the age after which the location cache reloads on its own.
	DefaultCacheTTL = 300 * time.Second

	// DefaultReaperInterval is how often expired holds are removed.
	DefaultReaperInterval = time.Hour

	// DefaultFace is the face recorded for a location when none is given.
	DefaultFace = "Fața A"
)

// DefaultFirms are seeded into an empty firme table.
var DefaultFirms = []string{
	"Focus Media Outdoor",
	"Excellence Media Production",
	"Michi Media Advertising",
}

// IsKnownStatus reports whether s is one of the location statuses.
func IsKnownStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusRented, StatusExpired:
		return true
	}
	return false
}
