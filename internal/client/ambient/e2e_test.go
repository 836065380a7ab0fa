package ambient

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abezemskiy/ambient/internal/repositories/data"
	"github.com/abezemskiy/ambient/internal/repositories/transport"
	"github.com/abezemskiy/ambient/internal/server/handlers"
	"github.com/abezemskiy/ambient/internal/server/storage"
	"github.com/abezemskiy/ambient/internal/server/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSandbox - запускает песочницу сервиса по HTTPS и возвращает клиент, настроенный на неё.
func startSandbox(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	stor := inmemory.NewStore(storage.Channel{
		ID:       testChannel,
		WriteKey: testWriteKey,
		ReadKey:  testReadKey,
		UserKey:  "user-key",
		DevKey:   "24:0A:C4:00:00:01",
	})
	ts := httptest.NewTLSServer(handlers.Router(stor))
	t.Cleanup(ts.Close)

	ca := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw}))
	c := New(WithBaseURL(ts.URL + "/"))
	require.NoError(t, c.Begin(testChannel, testWriteKey, testReadKey, ca))
	return c, ts
}

func TestSandboxRoundTrip(t *testing.T) {
	c, _ := startSandbox(t)
	ctx := context.Background()

	require.NoError(t, c.SetField(1, "23.5"))
	require.NoError(t, c.SetFieldInt(2, 66))
	require.NoError(t, c.SetComment("first"))
	require.NoError(t, c.Send(ctx))
	assert.Equal(t, http.StatusOK, c.Status())
	assert.True(t, c.Record().Empty())

	status, err := c.BulkSend(ctx, `[{"d1":"1"},{"d1":"2"}]`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	rows, err := c.ReadRecords(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	v, _ := rows[0].Value("d1")
	assert.Equal(t, "2", v)
	v, _ = rows[2].Value("d1")
	assert.Equal(t, "23.5", v)
	v, _ = rows[2].Value(data.KeyCmnt)
	assert.Equal(t, "first", v)

	buf := make([]byte, 1024)
	n, err := c.Read(ctx, buf, 1)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), `"d1":"2"`)

	_, err = c.Read(ctx, make([]byte, 8), 3)
	require.ErrorIs(t, err, ErrBufferTooSmall)

	require.ErrorIs(t, c.DeleteData(ctx, "wrong"), ErrHTTPStatus)
	assert.Equal(t, http.StatusForbidden, c.Status())
	require.NoError(t, c.DeleteData(ctx, "user-key"))

	s, err := c.ReadString(ctx, 5)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, s)

	info, err := c.GetChannel(ctx, "user-key", "24:0A:C4:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, data.ChannelInfo{Ch: testChannel, WriteKey: testWriteKey, ReadKey: testReadKey}, info)

	_, err = c.GetChannel(ctx, "user-key", "unknown")
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, http.StatusNotFound, c.Status())
}

func TestSandboxForbiddenSendClearsRecord(t *testing.T) {
	c, ts := startSandbox(t)
	ca := c.Config().CACert
	require.NoError(t, c.Begin(testChannel, "wrong-key", testReadKey, ca))

	require.NoError(t, c.SetField(1, "1"))
	err := c.Send(context.Background())
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, http.StatusForbidden, c.Status())
	assert.True(t, c.Record().Empty())

	// без доверия к сертификату песочницы соединение не устанавливается
	other := New(WithBaseURL(ts.URL))
	require.NoError(t, other.Begin(testChannel, testWriteKey, testReadKey, ""))
	require.NoError(t, other.SetField(1, "1"))
	err = other.Send(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, transport.StatusConnectionFailed, other.Status())
	assert.True(t, other.Record().Empty())
}
