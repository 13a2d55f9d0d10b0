package model

import "time"

// Kiosk mirrors the `kiosks` table.  AssignedUserID links the kiosk to the
// supervising user; Supervisor keeps the display name from imports.
type Kiosk struct {
	ID             uint64    `json:"id"`
	KioskNumber    string    `json:"kiosk_number"`
	Supervisor     *string   `json:"supervisor"`
	AssignedUserID *uint64   `json:"assigned_user_id"`
	MobileNumber   *string   `json:"mobile_number"`
	Address        *string   `json:"address"`
	Shelf          *string   `json:"shelf"`
	IsActive       bool      `json:"is_active"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	CreatedAt      time.Time `json:"created_at"`
}

// KioskFilter narrows GET /api/kiosks.  String fields are case-insensitive
// substring matches; Limit 0 disables pagination.
type KioskFilter struct {
	KioskNumber  string
	Address      string
	Supervisor   string
	MobileNumber string
	Shelf        string
	IsActive     *bool
	Page         int
	Limit        int
}

// KioskOption is the compact kiosk shape offered on the visit form.
type KioskOption struct {
	ID          uint64  `json:"id"`
	KioskNumber string  `json:"kiosk_number"`
	Address     *string `json:"address"`
}
