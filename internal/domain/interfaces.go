package domain

import (
	"context"

	"billboard/internal/database"
	"billboard/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the booking engine's view of persistent storage.
type Store interface {
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
	CreateLocation(ctx context.Context, loc *models.Location) error
	GetLocationByCode(ctx context.Context, code string) (*models.Location, error)
	ApplyProjections(ctx context.Context, changed map[int64]models.Projection) error
	DeleteLocation(ctx context.Context, id int64) error
	ListChildren(ctx context.Context, templateID int64) ([]models.Location, error)
	CountActiveUnits(ctx context.Context, templateID int64, start, end models.Date) (int, error)
	MobileCapacity() int

	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
	ListBookingsForLocation(ctx context.Context, locationID int64) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, id int64, start, end models.Date, amount *decimal.Decimal) (*models.Booking, error)
	ConvertHold(ctx context.Context, holdID int64, rental *models.Booking) error
	DeleteExpiredHolds(ctx context.Context, today models.Date) (int64, error)
	CheckAvailability(ctx context.Context, locationID int64, start, end models.Date) (*models.Availability, error)

	SpawnMobileRentals(ctx context.Context, r *models.MobileRental) ([]models.MobileUnit, error)
	ReleaseBooking(ctx context.Context, id int64) (*database.ReleaseResult, error)
	ReleaseLocation(ctx context.Context, locationID int64) ([]database.ReleaseResult, error)

	CreateDecoration(ctx context.Context, d *models.Decoration) error
	UpdateDecoration(ctx context.Context, d *models.Decoration) error
	DeleteDecoration(ctx context.Context, id int64) error
	GetDecoration(ctx context.Context, id int64) (*models.Decoration, error)
	ListDecorations(ctx context.Context, locationID int64) ([]models.Decoration, error)

	ResolveClient(ctx context.Context, name string) (*models.Client, error)
	ResolveFirm(ctx context.Context, name string) (*models.Firm, error)
	ListFirms(ctx context.Context) ([]models.Firm, error)
}

// LocationSource feeds the location cache.
type LocationSource interface {
	ListLocations(ctx context.Context) ([]models.Location, error)
}

// SnapshotStore keeps the last good catalog snapshot outside the process.
// Load returns nil without error when nothing is stored.
type SnapshotStore interface {
	Save(ctx context.Context, snap *models.LocationSnapshot) error
	Load(ctx context.Context) (*models.LocationSnapshot, error)
	Clear(ctx context.Context) error
}

// LocationCache serves catalog reads from a snapshot.
type LocationCache interface {
	GetAll() []models.Location
	GetByID(id int64) (models.Location, bool)
	List(filter models.LocationFilter) []models.Location
	Refresh(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
