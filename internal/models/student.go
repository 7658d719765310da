package models

import "time"

// Student is a portal user enrolled in the institution. Password hashes are
// never serialised into API responses.
type Student struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Phone        string    `db:"phone" json:"phone"`
	RollNumber   string    `db:"roll_number" json:"roll_number"`
	Semester     int       `db:"semester" json:"semester"`
	Department   string    `db:"department" json:"department"`
	Avatar       string    `db:"avatar" json:"avatar,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// StudentFilter provides filters for listing students.
type StudentFilter struct {
	Department string
	Semester   int
	Active     *bool
	Page       int
	PageSize   int
}
