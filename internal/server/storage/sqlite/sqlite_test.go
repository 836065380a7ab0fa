package sqlite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abezemskiy/ambient/internal/repositories/data"
	"github.com/abezemskiy/ambient/internal/server/handlers"
	"github.com/abezemskiy/ambient/internal/server/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore - создаёт хранилище в файле временного каталога теста.
func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	conn, err := Open(ctx, filepath.Join(t.TempDir(), "sandbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	stor := NewStore(conn)
	require.NoError(t, stor.Bootstrap(ctx))
	// повторная подготовка не должна ломать схему
	require.NoError(t, stor.Bootstrap(ctx))
	return stor
}

func row(d1 string) data.Record {
	v, _ := json.Marshal(d1)
	return data.Record{"d1": v}
}

func TestChannels(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ch := storage.Channel{ID: 1, WriteKey: "w", ReadKey: "r", UserKey: "u", DevKey: "dev"}
	require.NoError(t, s.AddChannel(ctx, ch))

	got, ok, err := s.GetChannel(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ch, got)

	_, ok, err = s.GetChannel(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err = s.FindByDevKey(ctx, "u", "dev")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ch, got)

	_, ok, err = s.FindByDevKey(ctx, "u", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	// замена ключей существующего канала
	ch.WriteKey = "w2"
	require.NoError(t, s.AddChannel(ctx, ch))
	got, _, err = s.GetChannel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "w2", got.WriteKey)
}

func TestData(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AddChannel(ctx, storage.Channel{ID: 1}))

	ok, err := s.AddData(ctx, 1, []data.Record{row("1"), row("2")})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AddData(ctx, 1, []data.Record{row("3")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AddData(ctx, 5, []data.Record{row("x")})
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := s.GetData(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	v, _ := rows[0].Value("d1")
	assert.Equal(t, "3", v)
	v, _ = rows[1].Value("d1")
	assert.Equal(t, "2", v)

	rows, err = s.GetData(ctx, 1, 100)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// замена ключей канала сохраняет его данные
	require.NoError(t, s.AddChannel(ctx, storage.Channel{ID: 1, WriteKey: "new"}))
	rows, err = s.GetData(ctx, 1, 100)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	ok, err = s.DeleteData(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	rows, err = s.GetData(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	ok, err = s.DeleteData(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRouterOverSQLite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AddChannel(ctx, storage.Channel{ID: 7, WriteKey: "wkey", ReadKey: "rkey"}))

	ts := httptest.NewServer(handlers.Router(s))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v2/channels/7/data", "application/json",
		strings.NewReader(`{"writeKey":"wkey","d1":"23.5"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v2/channels/7/data?readKey=rkey&n=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var rows []data.Record
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	v, _ := rows[0].Value("d1")
	assert.Equal(t, "23.5", v)
	_, ok := rows[0].Value(data.KeyCreated)
	assert.True(t, ok)
}
