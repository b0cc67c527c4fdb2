package database

import "errors"

var (
	ErrOverlap          = errors.New("location already booked in this period")
	ErrInvalidRange     = errors.New("end date is before start date")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrCapacityExceeded = errors.New("mobile template capacity exceeded")
	ErrNotFound         = errors.New("not found")
	ErrConnectionLost   = errors.New("database connection lost")
	ErrTemplateBooking  = errors.New("mobile templates can only be rented through installations")
	ErrNotTemplate      = errors.New("location is not a mobile template")
	ErrNotMobileChild   = errors.New("location is not a mobile unit")
	ErrNotHold          = errors.New("booking is not a hold")
	ErrNoInstallations  = errors.New("at least one installation with address and gps is required")
	ErrCampaignRequired = errors.New("agency clients must name a campaign")
	ErrClientRequired   = errors.New("client name is required")
	ErrSourceMissing    = errors.New("source database does not exist")
	ErrEmptySource      = errors.New("source database has no locations")
)

