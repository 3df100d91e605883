package models

import "time"

// Holiday is one legal-holiday calendar entry.
type Holiday struct {
	ID   string    `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
	Date time.Time `db:"date" json:"date"`
}
