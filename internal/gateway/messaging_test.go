package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBotAPI(t *testing.T, sent *[]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"market","username":"market_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			*sent = append(*sent, r.FormValue("chat_id")+":"+r.FormValue("text"))
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
}

func TestTelegramMessenger_SendMessage(t *testing.T) {
	var sent []string
	server := fakeBotAPI(t, &sent)
	defer server.Close()

	messenger, err := NewTelegramMessengerWithEndpoint("token", server.URL+"/bot%s/%s", server.Client())
	require.NoError(t, err)

	require.NoError(t, messenger.SendMessage(context.Background(), 42, "new post"))
	assert.Equal(t, []string{"42:new post"}, sent)
}

func TestTelegramMessenger_CancelledContext(t *testing.T) {
	var sent []string
	server := fakeBotAPI(t, &sent)
	defer server.Close()

	messenger, err := NewTelegramMessengerWithEndpoint("token", server.URL+"/bot%s/%s", server.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, messenger.SendMessage(ctx, 42, "new post"), context.Canceled)
	assert.Empty(t, sent)
}
