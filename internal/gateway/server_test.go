package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"prostop/internal/gateway/protocol"
	blockingdomain "prostop/internal/modules/blocking/domain"
	notifydomain "prostop/internal/modules/notify/domain"
	trackerdto "prostop/internal/modules/tracker/dto"
	"prostop/internal/platform/clock"
	apperrors "prostop/internal/platform/errors"
	"prostop/internal/platform/id"
)

type fakeCoordinator struct {
	mu        sync.Mutex
	activated []int
	updated   []int
	focus     []bool
	activity  []string
}

func (f *fakeCoordinator) OnTabActivated(_ context.Context, tabID int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, tabID)
	return nil
}

func (f *fakeCoordinator) OnTabUpdated(_ context.Context, tabID int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, tabID)
	return nil
}

func (f *fakeCoordinator) OnFocusChanged(_ context.Context, focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focus = append(f.focus, focused)
}

func (f *fakeCoordinator) OnUserActivity(_ context.Context, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = append(f.activity, kind)
}

func (f *fakeCoordinator) Status(context.Context) trackerdto.StatusOutput {
	return trackerdto.StatusOutput{State: "active", Tracking: true, TrackedDomain: "docs.example.com"}
}

func (f *fakeCoordinator) activatedTabs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.activated...)
}

type fakeTimer struct {
	mu      sync.Mutex
	started []string
}

func (f *fakeTimer) Start(_ context.Context, timerType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, timerType)
	return nil
}

func (f *fakeTimer) Pause(context.Context) error  { return apperrors.ErrTimerNotRunning }
func (f *fakeTimer) Resume(context.Context) error { return nil }
func (f *fakeTimer) Reset(context.Context)        {}

type fakeOverrides struct {
	mu      sync.Mutex
	granted []string
}

func (f *fakeOverrides) GrantOverride(key string, duration time.Duration) blockingdomain.OverrideGrant {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, key)
	return blockingdomain.OverrideGrant{Domain: key, ExpiresAt: time.Now().Add(duration)}
}

func newTestServer() (*Server, *fakeCoordinator, *fakeTimer, *fakeOverrides) {
	tracker := &fakeCoordinator{}
	timer := &fakeTimer{}
	overrides := &fakeOverrides{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(tracker, timer, overrides, clock.SystemClock{}, id.UUID{}, logger)
	return srv, tracker, timer, overrides
}

func dial(t *testing.T, httpSrv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return ws
}

func writeFrame(t *testing.T, ws *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{
		"type":      msgType,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if payload != nil {
		msg["payload"] = payload
	}
	data, _ := json.Marshal(msg)
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer()
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Fatalf("health body = %v", body)
	}
}

func TestHealthReportsStorageProbe(t *testing.T) {
	srv, _, _, _ := newTestServer()
	srv.SetHealth(func(context.Context) (int, error) { return 3, nil })

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["storage"] != "ok" || body["records"] != float64(3) {
		t.Fatalf("health body = %v", body)
	}

	srv.SetHealth(func(context.Context) (int, error) { return 0, errors.New("disk gone") })
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "degraded" {
		t.Fatalf("health body = %v", body)
	}
}

func TestTabSignalReachesCoordinator(t *testing.T) {
	srv, tracker, _, _ := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	defer ws.Close()

	writeFrame(t, ws, protocol.TypeTabActivated, map[string]any{"tabId": 5, "url": "https://example.com/"})
	writeFrame(t, ws, protocol.TypeStatusGet, nil)
	resp := readFrame(t, ws)
	if resp.Type != protocol.TypeStatus {
		t.Fatalf("expected status response, got %s", resp.Type)
	}

	tabs := tracker.activatedTabs()
	if len(tabs) != 1 || tabs[0] != 5 {
		t.Fatalf("coordinator saw %v", tabs)
	}

	tab, err := srv.QueryActiveTab(context.Background())
	if err != nil {
		t.Fatalf("active tab query: %v", err)
	}
	if tab.ID != 5 {
		t.Fatalf("active tab = %+v", tab)
	}
}

func TestInvalidFrameGetsErrorBack(t *testing.T) {
	srv, _, _, _ := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage, []byte("not json"))
	resp := readFrame(t, ws)
	if resp.Type != protocol.TypeError {
		t.Fatalf("expected error frame, got %s", resp.Type)
	}
	var p protocol.ErrorPayload
	json.Unmarshal(resp.Payload, &p)
	if p.Code != protocol.ErrInvalidMessage {
		t.Fatalf("error code = %s", p.Code)
	}
}

func TestTimerCommandErrorsAreReported(t *testing.T) {
	srv, _, _, _ := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	defer ws.Close()

	writeFrame(t, ws, protocol.TypeTimerPause, nil)
	resp := readFrame(t, ws)
	if resp.Type != protocol.TypeError {
		t.Fatalf("expected error frame, got %s", resp.Type)
	}
	var p protocol.ErrorPayload
	json.Unmarshal(resp.Payload, &p)
	if p.Code != protocol.ErrCommandFailed {
		t.Fatalf("error code = %s", p.Code)
	}
}

func TestOverrideRequestGrantsAndReturnsStatus(t *testing.T) {
	srv, _, _, overrides := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	defer ws.Close()

	writeFrame(t, ws, protocol.TypeOverrideRequest, map[string]any{"domain": "news.example.com", "minutes": 5})
	resp := readFrame(t, ws)
	if resp.Type != protocol.TypeStatus {
		t.Fatalf("expected status response, got %s", resp.Type)
	}

	overrides.mu.Lock()
	granted := append([]string(nil), overrides.granted...)
	overrides.mu.Unlock()
	if len(granted) != 1 || granted[0] != "news.example.com" {
		t.Fatalf("granted = %v", granted)
	}
}

func TestNavigateWithoutClients(t *testing.T) {
	srv, _, _, _ := newTestServer()
	err := srv.Navigate(context.Background(), 1, "blocked.html")
	if !errors.Is(err, apperrors.ErrNoListener) {
		t.Fatalf("expected ErrNoListener, got %v", err)
	}
	if _, err := srv.QueryActiveTab(context.Background()); !errors.Is(err, apperrors.ErrNoListener) {
		t.Fatalf("expected ErrNoListener, got %v", err)
	}
}

func TestDeliverBroadcastsEvent(t *testing.T) {
	srv, _, _, _ := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	if err := srv.Deliver(context.Background(), notifydomain.Event{Kind: notifydomain.KindStateChanged}); !errors.Is(err, apperrors.ErrNoListener) {
		t.Fatalf("no clients yet, expected ErrNoListener, got %v", err)
	}

	ws := dial(t, httpSrv)
	defer ws.Close()

	// Round-trip once so the connection is registered before broadcasting.
	writeFrame(t, ws, protocol.TypeStatusGet, nil)
	readFrame(t, ws)

	event := notifydomain.Event{Kind: notifydomain.KindBlocked, Domain: "news.example.com", TodaySeconds: 60, LimitMinutes: 1}
	if err := srv.Deliver(context.Background(), event); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	resp := readFrame(t, ws)
	if resp.Type != protocol.TypeTabBlocked {
		t.Fatalf("expected tab.blocked, got %s", resp.Type)
	}
	var got notifydomain.Event
	json.Unmarshal(resp.Payload, &got)
	if got.Domain != "news.example.com" || got.TodaySeconds != 60 {
		t.Fatalf("event payload = %+v", got)
	}
}
