// Package capture reads and writes capture files: extracted text prefixed
// with a YAML header describing where and when it was captured.
package capture

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/glimpse/internal/models"
)

// Ext is the file extension of capture files in the inbox.
const Ext = ".txt"

const delim = "---"

var (
	// ErrMissingHeader is returned for files without a YAML header block.
	ErrMissingHeader = errors.New("capture: missing header")
	// ErrMissingTimestamp is returned when the header has no captured_at.
	ErrMissingTimestamp = errors.New("capture: captured_at is required")
	// ErrTimestampRange is returned for a captured_at the index cannot store.
	ErrTimestampRange = errors.New("capture: captured_at out of range")

	// MinTimestamp and MaxTimestamp bound captured_at to what fits in
	// int64 nanoseconds since the Unix epoch.
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type header struct {
	ID         string `yaml:"id,omitempty"`
	App        string `yaml:"app,omitempty"`
	Window     string `yaml:"window,omitempty"`
	Source     string `yaml:"source,omitempty"`
	CapturedAt string `yaml:"captured_at"`
}

// Parse decodes a capture file. path is relative to the inbox root and
// provides the record ID when the header does not carry one.
func Parse(path string, data []byte) (*models.Record, error) {
	raw, text, err := splitHeader(data)
	if err != nil {
		return nil, err
	}

	var h header
	if err := yaml.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("capture: decode header: %w", err)
	}
	if strings.TrimSpace(h.CapturedAt) == "" {
		return nil, ErrMissingTimestamp
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(h.CapturedAt))
	if err != nil {
		return nil, fmt.Errorf("capture: parse captured_at: %w", err)
	}
	if ts.Before(MinTimestamp) || ts.After(MaxTimestamp) {
		return nil, fmt.Errorf("%w: %s", ErrTimestampRange, h.CapturedAt)
	}

	id := strings.TrimSpace(h.ID)
	if id == "" {
		id = strings.TrimSuffix(filepath.ToSlash(path), Ext)
	}

	return &models.Record{
		ID:          id,
		Text:        text,
		AppName:     h.App,
		WindowTitle: h.Window,
		Source:      h.Source,
		Path:        path,
		Timestamp:   ts,
	}, nil
}

// Format encodes r as a capture file. The result round-trips through Parse.
func Format(r models.Record) ([]byte, error) {
	h := header{
		ID:         r.ID,
		App:        r.AppName,
		Window:     r.WindowTitle,
		Source:     r.Source,
		CapturedAt: r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	raw, err := yaml.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("capture: encode header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(raw)
	buf.WriteString(delim + "\n")
	buf.WriteString(r.Text)
	return buf.Bytes(), nil
}

// FileName returns the inbox file name used for a record with the given ID.
func FileName(id string) string {
	return unsafeNameRe.ReplaceAllString(id, "_") + Ext
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// splitHeader separates the YAML header (between leading --- lines) from
// the captured text.
func splitHeader(data []byte) ([]byte, string, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", ErrMissingHeader
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", ErrMissingHeader
	}

	raw := rest[:idx]
	after := string(rest[idx+1+len(delim):])
	after = strings.TrimPrefix(after, "\r")
	after = strings.TrimPrefix(after, "\n")
	return raw, after, nil
}
