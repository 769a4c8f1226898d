package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp runs the CLI with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"docimport", "--log-level", "error"}, args...))
	return out.String(), err
}

// importFixture runs a CSV import into a fresh on-disk store.
func importFixture(t *testing.T) (dbPath, auditDir string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "db")
	auditDir = filepath.Join(dir, "audit")
	input := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(input,
		[]byte("id;name;active\n1;Ada;true\n2;Grace;false\nx;Broken;true\n"), 0o644))

	cfgPath := filepath.Join(dir, "docimport.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
importer: csv
audit:
  dir: %s
csv:
  separator: ";"
  columnTypes: [INTEGER, STRING, BOOLEAN]
  keyPrefix: "person::"
`, auditDir)), 0o644))

	_, err := runApp(t, "run", "--config", cfgPath, "--db", dbPath, "--input", input, "--workers", "2")
	require.NoError(t, err)
	return dbPath, auditDir
}

func TestRunAndGet(t *testing.T) {
	dbPath, _ := importFixture(t)

	out, err := runApp(t, "get", "--db", dbPath, "person::1")
	require.NoError(t, err)

	var view struct {
		Key      string          `json:"key"`
		Source   string          `json:"source"`
		RunID    string          `json:"runId"`
		Document json.RawMessage `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "person::1", view.Key)
	assert.Equal(t, "delimited", view.Source)
	assert.NotEmpty(t, view.RunID)
	assert.JSONEq(t, `{"id":1,"name":"Ada","active":true}`, string(view.Document))

	out, err = runApp(t, "get", "--db", dbPath, "--format", "yaml", "person::2")
	require.NoError(t, err)
	assert.Contains(t, out, "key: person::2")
	assert.Contains(t, out, "document:\n  id: 2\n  name: Grace\n  active: false\n")
}

func TestGetValidation(t *testing.T) {
	dbPath, _ := importFixture(t)

	t.Run("missing db flag fails", func(t *testing.T) {
		_, err := runApp(t, "get", "person::1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("missing key fails", func(t *testing.T) {
		_, err := runApp(t, "get", "--db", dbPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key is required")
	})

	t.Run("unknown key fails", func(t *testing.T) {
		_, err := runApp(t, "get", "--db", dbPath, "person::99")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("bad format fails", func(t *testing.T) {
		_, err := runApp(t, "get", "--db", dbPath, "--format", "xml", "person::1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})
}

func TestRunsCommand(t *testing.T) {
	dbPath, _ := importFixture(t)

	out, err := runApp(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))
	assert.Contains(t, lines[1], "delimited")

	fields := strings.Fields(lines[1])
	// run, source, date, time, elapsed, read, skipped, succeeded, failed
	require.GreaterOrEqual(t, len(fields), 9)
	assert.Equal(t, []string{"2", "1", "2", "0"}, fields[5:9])
}

func TestAuditCommand(t *testing.T) {
	_, auditDir := importFixture(t)

	out, err := runApp(t, "audit", "--file", filepath.Join(auditDir, "success.out"), "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = runApp(t, "audit", "--file", filepath.Join(auditDir, "success.out"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"person::1", "person::2"}, strings.Fields(out))

	_, err = runApp(t, "audit", "--file", filepath.Join(auditDir, "absent.out"))
	require.Error(t, err)
}

func TestRunCommandValidation(t *testing.T) {
	t.Run("unknown importer fails", func(t *testing.T) {
		_, err := runApp(t, "run", "--importer", "ftp")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown importer")
	})

	t.Run("missing config file fails", func(t *testing.T) {
		_, err := runApp(t, "run", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("bad schedule fails", func(t *testing.T) {
		_, err := runApp(t, "run", "--input", "in.csv", "--schedule", "sometimes")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schedule")
	})
}

func TestSetupLogger(t *testing.T) {
	newTestApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}
	}

	for _, level := range []string{"debug", "INFO", "WaRn", "error"} {
		t.Run(level, func(t *testing.T) {
			require.NoError(t, newTestApp().Run([]string{"test", "-l", level}))
		})
	}

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp().Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestMain(m *testing.M) {
	original := slog.Default()
	code := m.Run()
	slog.SetDefault(original)
	os.Exit(code)
}
