package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		current := 1
		if c, err := r.Cookie("journey_progress"); err == nil {
			current, _ = strconv.Atoi(c.Value)
		}
		if r.Method == http.MethodPost {
			var body struct {
				DayCompleted int `json:"dayCompleted"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.DayCompleted > current {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "Progress step is out of sequence"})
				return
			}
			if body.DayCompleted == current {
				current = min(8, current+1)
			}
		}
		http.SetCookie(w, &http.Cookie{Name: "journey_progress", Value: strconv.Itoa(current), Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "unlocked": current})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompleteThenCanAccess(t *testing.T) {
	srv := progressServer(t)
	dir := t.TempDir()
	flags := []string{"--server", srv.URL, "--state-dir", dir}

	out, err := execute(t, append([]string{"complete", "1"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "completed day 1 (Rose Day), day 2 unlocked")

	out, err = execute(t, append([]string{"can-access", "2"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "day 2: open\n", out)

	out, err = execute(t, append([]string{"can-access", "3"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "day 3: locked\n", out)

	assert.FileExists(t, filepath.Join(dir, cookieFile))
	assert.FileExists(t, filepath.Join(dir, stateDBName))
}

func TestStatusShowsServerAndLocalState(t *testing.T) {
	srv := progressServer(t)
	dir := t.TempDir()
	flags := []string{"--server", srv.URL, "--state-dir", dir}

	_, err := execute(t, append([]string{"complete", "1"}, flags...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"status"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "server: day 2 unlocked")
	assert.Contains(t, out, "completed [1]")
	assert.Regexp(t, `1 Rose Day\s+completed`, out)
	assert.Regexp(t, `2 Propose Day\s+open`, out)
	assert.Regexp(t, `3 Chocolate Day\s+locked`, out)
}

func TestCompleteOutOfSequenceKeepsLocalProgress(t *testing.T) {
	srv := progressServer(t)
	dir := t.TempDir()
	flags := []string{"--server", srv.URL, "--state-dir", dir}

	_, err := execute(t, append([]string{"complete", "3"}, flags...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of sequence")

	out, err := execute(t, append([]string{"status"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "completed [3]")
}

func TestCompleteRejectsBadDay(t *testing.T) {
	_, err := execute(t, "complete", "9", "--state-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 8")
}

func TestDaysListsEveryStage(t *testing.T) {
	out, err := execute(t, "days")
	require.NoError(t, err)
	assert.Contains(t, out, "February 7")
	assert.Contains(t, out, "Valentine's Day")
	assert.Len(t, bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n")), 8)
}

func TestFileJarSurvivesDamage(t *testing.T) {
	path := filepath.Join(t.TempDir(), cookieFile)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	jar, err := openFileJar(path, "http://localhost:8080")
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(jar.u))
	require.NoError(t, jar.Save())
}
