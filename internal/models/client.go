package models

import "strings"

type Client struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"nume" json:"name"`
	Type    string `db:"tip" json:"type"`
	CUI     string `db:"cui" json:"cui,omitempty"`
	Address string `db:"adresa" json:"address,omitempty"`
	Contact string `db:"contact" json:"contact,omitempty"`
	Email   string `db:"email" json:"email,omitempty"`
	Phone   string `db:"phone" json:"phone,omitempty"`
	Notes   string `db:"observatii" json:"notes,omitempty"`
}

func (c Client) IsAgency() bool {
	return c.Type == ClientAgency
}

// Label is the text stored on bookings and locations for this client.
// Agencies book on behalf of a campaign and are shown as "client - campaign".
func (c Client) Label(campaign string) string {
	campaign = strings.TrimSpace(campaign)
	if c.IsAgency() && campaign != "" {
		return c.Name + " - " + campaign
	}
	return c.Name
}

// Firm is the company that issues the invoice for a rental.
type Firm struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"nume" json:"name"`
	CUI     string `db:"cui" json:"cui,omitempty"`
	Address string `db:"adresa" json:"address,omitempty"`
}
