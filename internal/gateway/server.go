package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"prostop/internal/gateway/protocol"
	blockingdomain "prostop/internal/modules/blocking/domain"
	notifydomain "prostop/internal/modules/notify/domain"
	notifyout "prostop/internal/modules/notify/port/out"
	trackerdomain "prostop/internal/modules/tracker/domain"
	trackerdto "prostop/internal/modules/tracker/dto"
	trackerout "prostop/internal/modules/tracker/port/out"
	"prostop/internal/platform/clock"
	apperrors "prostop/internal/platform/errors"
	"prostop/internal/platform/id"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	// heartbeatTTL bounds how stale the heartbeat-reported active tab may be
	// before QueryActiveTab stops trusting it.
	heartbeatTTL = 90 * time.Second

	sendBuffer = 256
)

// The extension connects from its own origin, so the default same-origin
// check would reject every upgrade.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type coordinator interface {
	OnTabActivated(ctx context.Context, tabID int, url string) error
	OnTabUpdated(ctx context.Context, tabID int, url string) error
	OnFocusChanged(ctx context.Context, focused bool)
	OnUserActivity(ctx context.Context, kind string)
	Status(ctx context.Context) trackerdto.StatusOutput
}

type timerControl interface {
	Start(ctx context.Context, timerType string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Reset(ctx context.Context)
}

type overrideGranter interface {
	GrantOverride(key string, duration time.Duration) blockingdomain.OverrideGrant
}

// Server is the WebSocket gateway between the browser extension and the
// daemon. It translates inbound frames into coordinator and timer calls, and
// doubles as the outbound surface: the tab port for navigation and the
// notification sink for event fan-out.
type Server struct {
	tracker   coordinator
	timer     timerControl
	overrides overrideGranter
	clk       clock.Clock
	ids       id.Generator
	logger    *slog.Logger

	clientsMu sync.RWMutex
	clients   map[*client]bool

	tabMu     sync.Mutex
	activeTab trackerdomain.Tab
	tabSeenAt time.Time

	healthMu sync.Mutex
	health   func(ctx context.Context) (int, error)
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

func NewServer(tracker coordinator, timer timerControl, overrides overrideGranter, clk clock.Clock, ids id.Generator, logger *slog.Logger) *Server {
	return &Server{
		tracker:   tracker,
		timer:     timer,
		overrides: overrides,
		clk:       clk,
		ids:       ids,
		logger:    logger,
		clients:   make(map[*client]bool),
	}
}

// NewDetachedServer builds a server without its inbound targets, for wiring
// orders where the coordinator itself needs the server as its tab port.
// Attach must be called before the server accepts connections.
func NewDetachedServer(clk clock.Clock, ids id.Generator, logger *slog.Logger) *Server {
	return NewServer(nil, nil, nil, clk, ids, logger)
}

// Attach binds the inbound dispatch targets.
func (s *Server) Attach(tracker coordinator, timer timerControl, overrides overrideGranter) {
	s.tracker = tracker
	s.timer = timer
	s.overrides = overrides
}

var (
	_ trackerout.TabPort = (*Server)(nil)
	_ notifyout.Sink     = (*Server)(nil)
)

// Handler returns the HTTP surface: the WebSocket endpoint and a health
// probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// SetHealth installs a storage probe reported by the health endpoint.
func (s *Server) SetHealth(fn func(ctx context.Context) (int, error)) {
	s.healthMu.Lock()
	s.health = fn
	s.healthMu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"clients": s.clientCount(),
	}
	s.healthMu.Lock()
	probe := s.health
	s.healthMu.Unlock()
	if probe != nil {
		records, err := probe(r.Context())
		if err != nil {
			body["status"] = "degraded"
			body["storage"] = err.Error()
		} else {
			body["storage"] = "ok"
			body["records"] = records
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     s.ids.New(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	s.logger.Info("client connected", "client", c.id, "remote", conn.RemoteAddr().String())

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.server.handleMessage(c, message)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.clientsMu.Unlock()
	s.logger.Info("client disconnected", "client", c.id)
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleMessage dispatches one validated inbound frame.
func (s *Server) handleMessage(c *client, raw []byte) {
	ctx := context.Background()
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeTabActivated, protocol.TypeTabUpdated:
		var p protocol.TabPayload
		json.Unmarshal(msg.Payload, &p)
		s.rememberTab(trackerdomain.Tab{ID: p.TabID, URL: p.URL})
		var handleErr error
		if msg.Type == protocol.TypeTabActivated {
			handleErr = s.tracker.OnTabActivated(ctx, p.TabID, p.URL)
		} else {
			handleErr = s.tracker.OnTabUpdated(ctx, p.TabID, p.URL)
		}
		if handleErr != nil {
			s.sendError(c, protocol.ErrCommandFailed, handleErr.Error())
		}

	case protocol.TypeWindowFocus:
		var p protocol.WindowFocusPayload
		json.Unmarshal(msg.Payload, &p)
		s.tracker.OnFocusChanged(ctx, p.Focused)

	case protocol.TypeUserActivity:
		var p protocol.UserActivityPayload
		json.Unmarshal(msg.Payload, &p)
		s.tracker.OnUserActivity(ctx, p.Kind)

	case protocol.TypeHeartbeat:
		s.logger.Debug("heartbeat", "client", c.id)
		if msg.Payload != nil {
			var p protocol.HeartbeatPayload
			json.Unmarshal(msg.Payload, &p)
			if p.ActiveTab != nil {
				s.rememberTab(trackerdomain.Tab{ID: p.ActiveTab.TabID, URL: p.ActiveTab.URL})
			}
		}

	case protocol.TypeTimerStart:
		var p protocol.TimerStartPayload
		if msg.Payload != nil {
			json.Unmarshal(msg.Payload, &p)
		}
		if err := s.timer.Start(ctx, p.Type); err != nil {
			s.sendError(c, protocol.ErrCommandFailed, err.Error())
		}

	case protocol.TypeTimerPause:
		if err := s.timer.Pause(ctx); err != nil {
			s.sendError(c, protocol.ErrCommandFailed, err.Error())
		}

	case protocol.TypeTimerResume:
		if err := s.timer.Resume(ctx); err != nil {
			s.sendError(c, protocol.ErrCommandFailed, err.Error())
		}

	case protocol.TypeTimerReset:
		s.timer.Reset(ctx)

	case protocol.TypeOverrideRequest:
		var p protocol.OverrideRequestPayload
		json.Unmarshal(msg.Payload, &p)
		grant := s.overrides.GrantOverride(p.Domain, time.Duration(p.Minutes)*time.Minute)
		s.logger.Info("override requested", "domain", grant.Domain, "until", grant.ExpiresAt)
		s.sendStatus(c, ctx)

	case protocol.TypeStatusGet:
		s.sendStatus(c, ctx)
	}
}

func (s *Server) rememberTab(tab trackerdomain.Tab) {
	s.tabMu.Lock()
	s.activeTab = tab
	s.tabSeenAt = s.clk.Now()
	s.tabMu.Unlock()
}

func (s *Server) sendStatus(c *client, ctx context.Context) {
	msg, err := protocol.NewMessage(protocol.TypeStatus, s.tracker.Status(ctx))
	if err != nil {
		return
	}
	s.sendTo(c, msg)
}

func (s *Server) sendError(c *client, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	s.sendTo(c, msg)
}

func (s *Server) sendTo(c *client, msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// Client buffer full, drop the frame.
	}
}

func (s *Server) broadcast(msg *protocol.Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	delivered := 0
	for c := range s.clients {
		select {
		case c.send <- data:
			delivered++
		default:
		}
	}
	return delivered
}

// QueryActiveTab reports the last active tab the browser told us about, as
// long as a client is connected and the report is fresh.
func (s *Server) QueryActiveTab(_ context.Context) (trackerdomain.Tab, error) {
	if s.clientCount() == 0 {
		return trackerdomain.Tab{}, apperrors.ErrNoListener
	}
	s.tabMu.Lock()
	defer s.tabMu.Unlock()
	if s.tabSeenAt.IsZero() || s.clk.Now().Sub(s.tabSeenAt) > heartbeatTTL {
		return trackerdomain.Tab{}, apperrors.ErrNoListener
	}
	return s.activeTab, nil
}

// Navigate pushes a tab.navigate command to every connected client; the one
// owning the tab acts on it.
func (s *Server) Navigate(_ context.Context, tabID int, url string) error {
	msg, err := protocol.NewMessage(protocol.TypeTabNavigate, protocol.NavigatePayload{TabID: tabID, URL: url})
	if err != nil {
		return err
	}
	if s.broadcast(msg) == 0 {
		return apperrors.ErrNoListener
	}
	return nil
}

// Name implements the notification sink.
func (s *Server) Name() string { return "websocket" }

// Deliver fans a notification event out to every client, typed by its kind.
func (s *Server) Deliver(_ context.Context, event notifydomain.Event) error {
	msg, err := protocol.NewMessage(string(event.Kind), event)
	if err != nil {
		return err
	}
	if s.broadcast(msg) == 0 {
		return apperrors.ErrNoListener
	}
	return nil
}
