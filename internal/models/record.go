// Package models defines the domain types for Glimpse.
package models

import "time"

// Record is one captured piece of on-screen or clipboard text.
type Record struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AppName     string    `json:"app_name,omitempty"`
	WindowTitle string    `json:"window_title,omitempty"`
	Source      string    `json:"source,omitempty"` // "ocr", "clipboard", ...
	Path        string    `json:"path,omitempty"`   // inbox-relative capture file
	Timestamp   time.Time `json:"timestamp"`
}

// CaptureMetadata is a lightweight representation returned by inbox listings.
type CaptureMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
