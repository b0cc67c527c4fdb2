package models

import "github.com/shopspring/decimal"

// BookingKind is derived from the amount column.
type BookingKind string

const (
	// KindHold is an unpaid reservation (amount NULL).
	KindHold BookingKind = "hold"
	// KindRental is a paid booking (amount > 0).
	KindRental BookingKind = "rental"
	// KindLinkage is the zero-amount shadow row a mobile child leaves on its template.
	KindLinkage BookingKind = "linkage"
)

type Booking struct {
	ID         int64               `db:"id" json:"id"`
	LocationID int64               `db:"loc_id" json:"location_id"`
	Client     string              `db:"client" json:"client"`
	ClientID   *int64              `db:"client_id" json:"client_id,omitempty"`
	Start      Date                `db:"data_start" json:"start"`
	End        Date                `db:"data_end" json:"end"`
	Amount     decimal.NullDecimal `db:"suma" json:"amount"`
	CreatedBy  string              `db:"created_by" json:"created_by"`
	CreatedOn  Date                `db:"created_on" json:"created_on"`
	Campaign   string              `db:"campaign" json:"campaign,omitempty"`
	FirmID     *int64              `db:"firma_id" json:"firm_id,omitempty"`
	DecorCost  decimal.NullDecimal `db:"decor_cost" json:"decor_cost"`
	ProdCost   decimal.NullDecimal `db:"prod_cost" json:"prod_cost"`
}

func (b Booking) Kind() BookingKind {
	switch {
	case !b.Amount.Valid:
		return KindHold
	case b.Amount.Decimal.IsZero():
		return KindLinkage
	default:
		return KindRental
	}
}

// Blocks reports whether the booking takes its location out of availability.
func (b Booking) Blocks() bool {
	return b.Kind() != KindLinkage
}

func (b Booking) Period() DateRange {
	return DateRange{Start: b.Start, End: b.End}
}

func (b Booking) Covers(day Date) bool {
	return b.Period().Contains(day)
}

func (b Booking) Overlaps(start, end Date) bool {
	return b.Period().Overlaps(DateRange{Start: start, End: end})
}

// Paid returns a NullDecimal carrying a rental amount.
func Paid(amount decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: amount, Valid: true}
}

// Unpaid is the amount of a hold.
var Unpaid = decimal.NullDecimal{}

// Decoration records decoration/production costs attached to a rental.
type Decoration struct {
	ID         int64               `db:"id" json:"id"`
	LocationID int64               `db:"loc_id" json:"location_id"`
	BookingID  *int64              `db:"rez_id" json:"booking_id,omitempty"`
	Date       Date                `db:"data" json:"date"`
	DecorCost  decimal.NullDecimal `db:"decor_cost" json:"decor_cost"`
	ProdCost   decimal.NullDecimal `db:"prod_cost" json:"prod_cost"`
	CreatedBy  string              `db:"created_by" json:"created_by"`
}

// Installation is the placement of one mobile unit.
type Installation struct {
	Address string `json:"address"`
	GPS     string `json:"gps"`
}

// MobileRental rents one or more physical units spawned from a mobile template.
type MobileRental struct {
	TemplateID    int64
	Client        string
	ClientID      *int64
	Campaign      string
	FirmID        *int64
	Start         Date
	End           Date
	Amount        decimal.Decimal
	DecorCost     decimal.Decimal
	ProdCost      decimal.Decimal
	CreatedBy     string
	CreatedOn     Date
	Installations []Installation
}

// MobileUnit is one spawned child with its paid booking and the template's linkage row.
type MobileUnit struct {
	Location Location `json:"location"`
	Booking  Booking  `json:"booking"`
	Linkage  Booking  `json:"linkage"`
}
