// Package storage defines the capture inbox file-system abstraction.
package storage

import "github.com/starford/glimpse/internal/models"

// Provider is the interface for capture inbox file operations.
type Provider interface {
	// List returns metadata for every capture file under dir (relative to the inbox root).
	List(dir string) ([]models.CaptureMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the inbox root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the inbox root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the inbox root).
	Delete(path string) error
}
