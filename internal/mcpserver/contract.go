package mcpserver

// CaptureFormatContract describes the capture files the inbox accepts.
const CaptureFormatContract = `# Glimpse Capture File Format

A capture agent (screen OCR, clipboard watcher) drops one file per capture into
the inbox directory. Glimpse indexes every ` + "`" + `*.txt` + "`" + ` file it finds there.

## Structure

` + "```" + `
---
id: 2026-10-18-0912-safari        # OPTIONAL, defaults to the file path without .txt
app: Safari                       # OPTIONAL, application name
window: Q3 budget - Sheets        # OPTIONAL, window title
source: ocr                       # OPTIONAL, ocr | clipboard | free text
captured_at: 2026-10-18T09:12:00Z # REQUIRED, RFC 3339
---
Extracted text, verbatim. May be empty.
` + "```" + `

## Rules

1. The ` + "`---`" + ` header block must come first. Files without it are skipped.
2. ` + "`captured_at`" + ` is required and must be RFC 3339. Files without it are skipped.
3. IDs are unique. A file whose header reuses another file's ID replaces that record.
4. Write files atomically (temp file plus rename) or expect a retry on the next write event.
5. Names starting with a dot are ignored.
6. Deleting a file removes its record.
`
