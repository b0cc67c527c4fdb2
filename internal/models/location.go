package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Location struct {
	ID             int64               `db:"id" json:"id" yaml:"-"`
	City           string              `db:"city" json:"city" yaml:"city"`
	County         string              `db:"county" json:"county" yaml:"county"`
	Address        string              `db:"address" json:"address" yaml:"address"`
	GPS            string              `db:"gps" json:"gps" yaml:"gps"`
	Code           string              `db:"code" json:"code" yaml:"code"`
	Type           string              `db:"type" json:"type" yaml:"type"`
	Size           string              `db:"size" json:"size" yaml:"size"`
	Face           string              `db:"face" json:"face" yaml:"face"`
	Group          string              `db:"grup" json:"group" yaml:"group"`
	Illumination   string              `db:"illumination" json:"illumination" yaml:"illumination"`
	PhotoLink      string              `db:"photo_link" json:"photo_link" yaml:"photo_link"`
	Notes          string              `db:"observatii" json:"notes" yaml:"notes"`
	SQM            decimal.NullDecimal `db:"sqm" json:"sqm" yaml:"-"`
	Ratecard       decimal.NullDecimal `db:"ratecard" json:"ratecard" yaml:"-"`
	SalePrice      decimal.NullDecimal `db:"pret_vanzare" json:"sale_price" yaml:"-"`
	FloatingPrice  decimal.NullDecimal `db:"pret_flotant" json:"floating_price" yaml:"-"`
	DecorationCost decimal.NullDecimal `db:"decoration_cost" json:"decoration_cost" yaml:"-"`
	IsMobile       bool                `db:"is_mobile" json:"is_mobile" yaml:"is_mobile"`
	ParentID       *int64              `db:"parent_id" json:"parent_id,omitempty" yaml:"-"`

	// Derived by the status projector.
	Status      string `db:"status" json:"status" yaml:"-"`
	Client      string `db:"client" json:"client" yaml:"-"`
	ClientID    *int64 `db:"client_id" json:"client_id,omitempty" yaml:"-"`
	PeriodStart Date   `db:"data_start" json:"period_start" yaml:"-"`
	PeriodEnd   Date   `db:"data_end" json:"period_end" yaml:"-"`
}

// IsTemplate reports whether the location is a mobile template that spawns children.
func (l Location) IsTemplate() bool {
	return l.IsMobile && l.ParentID == nil
}

func (l Location) IsMobileChild() bool {
	return l.ParentID != nil
}

// Projection returns the derived fields currently stored on the location.
func (l Location) Projection() Projection {
	return Projection{
		Status:      l.Status,
		Client:      l.Client,
		ClientID:    l.ClientID,
		PeriodStart: l.PeriodStart,
		PeriodEnd:   l.PeriodEnd,
	}
}

// SpawnChild clones the template's descriptive fields into a new physical unit.
func (l Location) SpawnChild(inst Installation) Location {
	parent := l.ID
	child := l
	child.ID = 0
	child.ParentID = &parent
	child.Address = inst.Address
	child.GPS = inst.GPS
	child.Status = StatusAvailable
	child.Client = ""
	child.ClientID = nil
	child.PeriodStart = Date{}
	child.PeriodEnd = Date{}
	return child
}

// Projection is the derived state the projector computes for one location.
type Projection struct {
	Status      string `json:"status"`
	Client      string `json:"client"`
	ClientID    *int64 `json:"client_id,omitempty"`
	PeriodStart Date   `json:"period_start"`
	PeriodEnd   Date   `json:"period_end"`
}

func (p Projection) Equal(o Projection) bool {
	return p.Status == o.Status &&
		p.Client == o.Client &&
		sameID(p.ClientID, o.ClientID) &&
		p.PeriodStart.Equal(o.PeriodStart) &&
		p.PeriodEnd.Equal(o.PeriodEnd)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// LocationFilter narrows catalog listings. Empty fields match everything.
type LocationFilter struct {
	Status         string
	Group          string
	City           string
	County         string
	Search         string
	IncludeExpired bool
	MobileOnly     bool
}

func (f LocationFilter) Matches(l Location) bool {
	if !f.IncludeExpired && f.Status != StatusExpired && l.Status == StatusExpired {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Group != "" && !strings.EqualFold(l.Group, f.Group) {
		return false
	}
	if f.City != "" && !strings.EqualFold(l.City, f.City) {
		return false
	}
	if f.County != "" && !strings.EqualFold(l.County, f.County) {
		return false
	}
	if f.MobileOnly && !l.IsMobile {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(strings.Join([]string{l.Code, l.City, l.Address, l.Client}, " "))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

// Availability is the answer of an availability check for one location and range.
type Availability struct {
	LocationID   int64      `json:"location_id"`
	Start        Date       `json:"start"`
	End          Date       `json:"end"`
	Free         bool       `json:"free"`
	Partial      bool       `json:"partial"`
	BlockedFrom  *Date      `json:"blocked_from,omitempty"`
	BlockedUntil *Date      `json:"blocked_until,omitempty"`
	FreeBefore   *DateRange `json:"free_before,omitempty"`
	FreeAfter    *DateRange `json:"free_after,omitempty"`
	Conflicts    []int64    `json:"conflicts,omitempty"`
}

// LocationSnapshot is an immutable copy of the catalog held by the cache.
type LocationSnapshot struct {
	TakenAt   int64      `json:"taken_at"`
	Locations []Location `json:"locations"`
}
