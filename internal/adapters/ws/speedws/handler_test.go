package speedws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"trafficstats/internal/core/traffic"
	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

type fakeStream struct {
	mu    sync.Mutex
	subs  map[traffic.SubscriptionHandle]func(domain.RateSample)
	unsub int
}

func newFakeStream() *fakeStream {
	return &fakeStream{subs: make(map[traffic.SubscriptionHandle]func(domain.RateSample))}
}

func (f *fakeStream) Subscribe(fn func(domain.RateSample)) traffic.SubscriptionHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := traffic.SubscriptionHandle(uuid.New())
	f.subs[h] = fn
	return h
}

func (f *fakeStream) Unsubscribe(h traffic.SubscriptionHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[h]; !ok {
		return false
	}
	delete(f.subs, h)
	f.unsub++
	return true
}

func (f *fakeStream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeStream) publish(s domain.RateSample) {
	f.mu.Lock()
	fns := make([]func(domain.RateSample), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func newServer(t *testing.T, stream Subscriber, secret string) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandler(ctx, stream, logger.NewNop(), secret, []string{"http://dashboard.local"})
	srv := httptest.NewServer(http.HandlerFunc(h.Serve))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ, channel string) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(domain.WsClientMessage{Type: typ, Channel: channel}))
}

func TestSubscribeReceivesSamples(t *testing.T) {
	stream := newFakeStream()
	srv := newServer(t, stream, "")
	conn := dial(t, srv, nil)

	send(t, conn, domain.WsSubscribe, domain.WsChannelNetworkSpeed)
	require.Eventually(t, func() bool { return stream.count() == 1 }, time.Second, 5*time.Millisecond)

	// repeated subscribe keeps a single subscription
	send(t, conn, domain.WsSubscribe, domain.WsChannelNetworkSpeed)
	stream.publish(domain.RateSample{DownloadKbps: 8, UploadKbps: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Channel string         `json:"channel"`
		Event   string         `json:"event"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.Equal(t, domain.WsChannelNetworkSpeed, ev.Channel)
	require.Equal(t, domain.WsEventNetworkSpeed, ev.Event)
	require.Equal(t, map[string]int{"downloadSpeed": 8, "uploadSpeed": 1}, ev.Payload)
	require.Equal(t, 1, stream.count())
}

func TestUnsubscribeAndDisconnectReleaseSubscription(t *testing.T) {
	stream := newFakeStream()
	srv := newServer(t, stream, "")

	conn := dial(t, srv, nil)
	send(t, conn, domain.WsSubscribe, domain.WsChannelNetworkSpeed)
	require.Eventually(t, func() bool { return stream.count() == 1 }, time.Second, 5*time.Millisecond)
	send(t, conn, domain.WsUnsubscribe, domain.WsChannelNetworkSpeed)
	require.Eventually(t, func() bool { return stream.count() == 0 }, time.Second, 5*time.Millisecond)

	send(t, conn, domain.WsSubscribe, domain.WsChannelNetworkSpeed)
	require.Eventually(t, func() bool { return stream.count() == 1 }, time.Second, 5*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return stream.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestUnknownChannelIgnored(t *testing.T) {
	stream := newFakeStream()
	srv := newServer(t, stream, "")
	conn := dial(t, srv, nil)

	send(t, conn, domain.WsSubscribe, "server:1:metrics")
	require.Never(t, func() bool { return stream.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestOriginCheck(t *testing.T) {
	srv := newServer(t, newFakeStream(), "")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{"Origin": {"http://evil.local"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, srv, http.Header{"Origin": {"http://dashboard.local"}})
}

func TestTokenRequiredWhenSecretSet(t *testing.T) {
	secret := "s3cret"
	srv := newServer(t, newFakeStream(), secret)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	dial(t, srv, http.Header{"Authorization": {"Bearer " + token}})
	dial(t, srv, http.Header{"Cookie": {"access_token=" + token}})
}
