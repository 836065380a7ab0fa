package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abezemskiy/ambient/internal/repositories/data"
	"github.com/abezemskiy/ambient/internal/server/storage"
	"github.com/abezemskiy/ambient/internal/server/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannel = storage.Channel{
	ID:       100,
	WriteKey: "wkey",
	ReadKey:  "rkey",
	UserKey:  "ukey",
	DevKey:   "24:0a:c4:00:00:01",
}

func fixedNow(t *testing.T) {
	t.Helper()
	now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC) }
	t.Cleanup(func() { now = time.Now })
}

func serve(t *testing.T, stor storage.IChannelStorage, method, target, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	Router(stor).ServeHTTP(w, request)

	res := w.Result()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(b)
}

func TestSendData(t *testing.T) {
	fixedNow(t)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		stored int
	}{
		{name: "success", target: "/api/v2/channels/100/data", body: `{"writeKey":"wkey","d1":"23.5","cmnt":"c"}`, status: 200, stored: 1},
		{name: "wrong key", target: "/api/v2/channels/100/data", body: `{"writeKey":"bad","d1":"1"}`, status: 403},
		{name: "no key", target: "/api/v2/channels/100/data", body: `{"d1":"1"}`, status: 403},
		{name: "bad json", target: "/api/v2/channels/100/data", body: `{"writeKey":`, status: 400},
		{name: "unknown channel", target: "/api/v2/channels/7/data", body: `{"writeKey":"wkey"}`, status: 404},
		{name: "bad channel id", target: "/api/v2/channels/abc/data", body: `{"writeKey":"wkey"}`, status: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stor := inmemory.NewStore(testChannel)
			status, _ := serve(t, stor, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, status)

			rows, err := stor.GetData(context.Background(), testChannel.ID, 10)
			require.NoError(t, err)
			assert.Len(t, rows, tt.stored)
		})
	}

	t.Run("stored row", func(t *testing.T) {
		stor := inmemory.NewStore(testChannel)
		status, _ := serve(t, stor, http.MethodPost, "/api/v2/channels/100/data", `{"writeKey":"wkey","d2":"66","unknown":"x"}`)
		require.Equal(t, http.StatusOK, status)

		rows, err := stor.GetData(context.Background(), testChannel.ID, 1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Len(t, rows[0], 2)
		v, _ := rows[0].Value("d2")
		assert.Equal(t, "66", v)
		v, _ = rows[0].Value(data.KeyCreated)
		assert.Equal(t, "2024-01-02T03:04:05.006Z", v)
	})
}

func TestSendDataArray(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		stored int
	}{
		{name: "bare array", body: `[{"d1":"1"},{"d1":"2","created":"2024-01-01T00:00:00.000Z"}]`, status: 200, stored: 2},
		{name: "envelope", body: `{"writeKey":"wkey","data":[{"d1":"1"}]}`, status: 200, stored: 1},
		{name: "envelope wrong key", body: `{"writeKey":"bad","data":[{"d1":"1"}]}`, status: 403},
		{name: "broken array", body: `[{"d1":`, status: 400},
		{name: "not json", body: `hello`, status: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stor := inmemory.NewStore(testChannel)
			status, _ := serve(t, stor, http.MethodPost, "/api/v2/channels/100/dataarray", tt.body)
			assert.Equal(t, tt.status, status)

			rows, err := stor.GetData(context.Background(), testChannel.ID, 10)
			require.NoError(t, err)
			assert.Len(t, rows, tt.stored)
		})
	}
}

func TestReadData(t *testing.T) {
	stor := inmemory.NewStore(testChannel)
	status, _ := serve(t, stor, http.MethodPost, "/api/v2/channels/100/dataarray", `[{"d1":"1"},{"d1":"2"},{"d1":"3"}]`)
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		name   string
		target string
		status int
		want   []string
	}{
		{name: "default n", target: "/api/v2/channels/100/data?readKey=rkey", status: 200, want: []string{"3"}},
		{name: "two rows", target: "/api/v2/channels/100/data?readKey=rkey&n=2", status: 200, want: []string{"3", "2"}},
		{name: "more than stored", target: "/api/v2/channels/100/data?readKey=rkey&n=10", status: 200, want: []string{"3", "2", "1"}},
		{name: "wrong key", target: "/api/v2/channels/100/data?readKey=bad", status: 403},
		{name: "bad n", target: "/api/v2/channels/100/data?readKey=rkey&n=0", status: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, stor, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, status)
			if tt.status != http.StatusOK {
				return
			}
			var rows []data.Record
			require.NoError(t, json.Unmarshal([]byte(body), &rows))
			got := make([]string, 0, len(rows))
			for _, r := range rows {
				v, _ := r.Value("d1")
				got = append(got, v)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteData(t *testing.T) {
	stor := inmemory.NewStore(testChannel)
	status, _ := serve(t, stor, http.MethodPost, "/api/v2/channels/100/dataarray", `[{"d1":"1"}]`)
	require.Equal(t, http.StatusOK, status)

	status, _ = serve(t, stor, http.MethodDelete, "/api/v2/channels/100/data?userKey=bad", "")
	assert.Equal(t, http.StatusForbidden, status)
	rows, err := stor.GetData(context.Background(), testChannel.ID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	status, _ = serve(t, stor, http.MethodDelete, "/api/v2/channels/100/data?userKey=ukey", "")
	assert.Equal(t, http.StatusOK, status)
	rows, err = stor.GetData(context.Background(), testChannel.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetChannel(t *testing.T) {
	stor := inmemory.NewStore(testChannel)

	status, body := serve(t, stor, http.MethodGet, "/api/v2/channels/?userKey=ukey&devKey=24%3A0a%3Ac4%3A00%3A00%3A01", "")
	require.Equal(t, http.StatusOK, status)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "100", got["ch"])
	assert.Equal(t, "wkey", got["writeKey"])
	assert.Equal(t, "rkey", got["readKey"])

	status, _ = serve(t, stor, http.MethodGet, "/api/v2/channels/?userKey=ukey&devKey=other", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = serve(t, stor, http.MethodGet, "/api/v2/channels/?userKey=ukey", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandleOtherRequest(t *testing.T) {
	status, _ := serve(t, inmemory.NewStore(testChannel), http.MethodGet, "/unknown", "")
	assert.Equal(t, http.StatusNotFound, status)
}
