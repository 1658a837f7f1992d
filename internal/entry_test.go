package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/generate"
)

type echoGenerator struct{ got generate.Request }

func (g *echoGenerator) Generate(_ context.Context, req generate.Request) (string, error) {
	g.got = req
	return "answer from history", nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Inbox.Path = filepath.Join(dir, "inbox")
	cfg.SQLite.Path = filepath.Join(dir, "glimpse.db")
	return cfg
}

func dropCapture(t *testing.T, cfg *Config, name, text string, at time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.Inbox.Path, 0o755))
	body := "---\napp: Numbers\nwindow: Budget\ncaptured_at: " + at.UTC().Format(time.RFC3339) + "\n---\n" + text
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Inbox.Path, name), []byte(body), 0o644))
}

func TestRunQuery_Context(t *testing.T) {
	cfg := testConfig(t)
	dropCapture(t, cfg, "q3.txt", "budget report Q3", time.Now().Add(-time.Hour))

	var out bytes.Buffer
	err := RunQuery(context.Background(), QueryContext, "budget",
		WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard))
	require.NoError(t, err)

	s := out.String()
	assert.True(t, strings.HasPrefix(s, cascade.TierImmediate.Label()), "output = %q", s)
	assert.Contains(t, s, "Numbers - Budget")
	assert.Contains(t, s, `"budget report Q3"`)
}

func TestRunQuery_ContextJSON(t *testing.T) {
	cfg := testConfig(t)
	dropCapture(t, cfg, "q3.txt", "budget report Q3", time.Now().Add(-2*24*time.Hour))

	var out bytes.Buffer
	err := RunQuery(context.Background(), QueryContextJSON, "budget",
		WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard))
	require.NoError(t, err)

	var c cascade.Context
	require.NoError(t, json.Unmarshal(out.Bytes(), &c))
	require.Len(t, c.Historical, 1)
	assert.Equal(t, "q3", c.Historical[0].ID)
}

func TestRunQuery_Ask(t *testing.T) {
	cfg := testConfig(t)
	gen := &echoGenerator{}

	var out bytes.Buffer
	err := RunQuery(context.Background(), QueryAsk, "what did I read?",
		WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard), WithGenerator(gen))
	require.NoError(t, err)

	assert.Equal(t, "answer from history", strings.TrimSpace(out.String()))
	assert.Contains(t, gen.got.User, cascade.NoContextMessage)
}

func TestRunQuery_AskWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.APIKey = ""

	err := RunQuery(context.Background(), QueryAsk, "q",
		WithConfig(cfg), WithOutput(io.Discard), WithLogOutput(io.Discard))
	assert.ErrorIs(t, err, generate.ErrMissingCredential)
}

func TestRunQuery_Errors(t *testing.T) {
	assert.Error(t, RunQuery(context.Background(), QueryContext, "q"), "missing config")

	err := RunQuery(context.Background(), "poem", "q",
		WithConfig(testConfig(t)), WithOutput(io.Discard), WithLogOutput(io.Discard))
	assert.Error(t, err, "unknown mode")
}
