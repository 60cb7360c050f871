package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "hwbot/pkg/logx"
)

func openDriver(t *testing.T, driver string) Store {
	t.Helper()
	ext := ".json"
	if driver == "sqlite" {
		ext = ".db"
	}
	st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "hwbot"+ext)}, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestOpenRequiresPath(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		_, err := Open(Config{Driver: driver}, logx.Nop())
		assert.Error(t, err, driver)
	}
}

func TestStateRoundTrip(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)

			_, ok, err := st.LoadState(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			at := time.Date(2022, 5, 1, 20, 0, 0, 0, time.UTC)
			want := State{LastTimestamp: 1651424400, LastStatus: "reviewing", UpdatedAt: at}
			require.NoError(t, st.SaveState(ctx, want))

			got, ok, err := st.LoadState(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want.LastTimestamp, got.LastTimestamp)
			assert.Equal(t, "reviewing", got.LastStatus)
			assert.Empty(t, got.LastError)
			assert.True(t, at.Equal(got.UpdatedAt))

			want = State{LastTimestamp: 1651500000, LastStatus: "approved", LastError: "unexpected response status 503"}
			require.NoError(t, st.SaveState(ctx, want))
			got, ok, err = st.LoadState(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int64(1651500000), got.LastTimestamp)
			assert.Equal(t, "approved", got.LastStatus)
			assert.Equal(t, "unexpected response status 503", got.LastError)
			assert.False(t, got.UpdatedAt.IsZero())
		})
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.SaveState(ctx, State{LastTimestamp: 42, LastStatus: "rejected"}))
	require.NoError(t, st.Close())

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	got, ok, err := st.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.LastTimestamp)
	assert.Equal(t, "rejected", got.LastStatus)
}

func TestFileAuditAppends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "hwbot.json")}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Kind: "status", Homework: "hw1", Status: "approved", Text: "a", Delivered: true}))
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Kind: "error", Text: "b"}))
	require.NoError(t, st.Close())

	b, err := os.ReadFile(filepath.Join(dir, "hwbot.audit.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"homework":"hw1"`)
	assert.Contains(t, lines[1], `"kind":"error"`)

	assert.ErrorIs(t, st.AppendAudit(ctx, AuditEntry{Text: "late"}), ErrClosed)
	assert.ErrorIs(t, st.SaveState(ctx, State{}), ErrClosed)
}

func TestSQLiteAuditAppends(t *testing.T) {
	ctx := context.Background()
	st := openDriver(t, "sqlite")

	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Kind: "status", Homework: "hw1", Status: "approved", Text: "a", Delivered: true}))
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Kind: "error", Text: "b"}))

	var n int
	require.NoError(t, st.(*sqliteStore).db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit WHERE delivered = 1`).Scan(&n))
	assert.Equal(t, 1, n)
}
