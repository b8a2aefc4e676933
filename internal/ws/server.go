package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/config"
	"bizops-analytics/internal/http/handlers"
	"bizops-analytics/internal/metrics"
	"bizops-analytics/internal/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	refreshDebounce = 2 * time.Second
	writeTimeout    = 10 * time.Second
)

// DashboardSource computes the snapshot pushed to subscribers.
type DashboardSource interface {
	Dashboard(ctx context.Context, businessID string, f analytics.Filter, period analytics.Period) (analytics.Dashboard, error)
}

type Server struct {
	Source DashboardSource
	Logger *zap.Logger
	Config config.Config

	location  *time.Location
	dashboard *dashboardRealtime
}

func New(source DashboardSource, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{Source: source, Logger: logger, Config: cfg, location: utils.LoadLocation(cfg.AnalyticsTimezone)}
	srv.dashboard = newDashboardRealtime(source, logger)
	return srv
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	request handlers.MetricRequest
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

type dashboardRealtime struct {
	source DashboardSource
	logger *zap.Logger

	mu      sync.RWMutex
	subs    map[string]map[*wsRealtimeClient]struct{}
	pending map[string]*time.Timer
}

func newDashboardRealtime(source DashboardSource, logger *zap.Logger) *dashboardRealtime {
	return &dashboardRealtime{
		source:  source,
		logger:  logger,
		subs:    make(map[string]map[*wsRealtimeClient]struct{}),
		pending: make(map[string]*time.Timer),
	}
}

func (dr *dashboardRealtime) subscribe(businessID string, client *wsRealtimeClient) (unsubscribe func()) {
	key := strings.TrimSpace(businessID)
	if key == "" {
		return func() {}
	}

	dr.mu.Lock()
	if dr.subs[key] == nil {
		dr.subs[key] = make(map[*wsRealtimeClient]struct{})
	}
	dr.subs[key][client] = struct{}{}
	dr.mu.Unlock()
	metrics.WebsocketSubscribers.Inc()

	return func() {
		dr.mu.Lock()
		clients := dr.subs[key]
		if _, ok := clients[client]; ok {
			delete(clients, client)
			metrics.WebsocketSubscribers.Dec()
		}
		if len(clients) == 0 {
			delete(dr.subs, key)
		}
		dr.mu.Unlock()
	}
}

func (dr *dashboardRealtime) clients(businessID string) []*wsRealtimeClient {
	dr.mu.RLock()
	defer dr.mu.RUnlock()
	clientsMap := dr.subs[businessID]
	out := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		out = append(out, c)
	}
	return out
}

func (dr *dashboardRealtime) drop(businessID string, client *wsRealtimeClient) {
	_ = client.conn.Close()
	dr.mu.Lock()
	if current := dr.subs[businessID]; current != nil {
		if _, ok := current[client]; ok {
			delete(current, client)
			metrics.WebsocketSubscribers.Dec()
		}
		if len(current) == 0 {
			delete(dr.subs, businessID)
		}
	}
	dr.mu.Unlock()
}

// schedule coalesces bursts of events for one business into a single refresh.
func (dr *dashboardRealtime) schedule(businessID string, delay time.Duration) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if len(dr.subs[businessID]) == 0 {
		return
	}
	if _, ok := dr.pending[businessID]; ok {
		return
	}
	dr.pending[businessID] = time.AfterFunc(delay, func() {
		dr.mu.Lock()
		delete(dr.pending, businessID)
		dr.mu.Unlock()
		dr.refresh(context.Background(), businessID)
	})
}

// refresh recomputes the dashboard once per distinct client query and pushes it.
func (dr *dashboardRealtime) refresh(ctx context.Context, businessID string) {
	clients := dr.clients(businessID)
	if len(clients) == 0 {
		return
	}

	snapshots := map[string]any{}
	for _, c := range clients {
		key := strings.Join(c.request.CacheParts(), "|")
		message, ok := snapshots[key]
		if !ok {
			message = dr.snapshot(ctx, c.request)
			snapshots[key] = message
		}
		if err := c.writeJSON(message); err != nil {
			dr.drop(businessID, c)
		}
	}
}

func (dr *dashboardRealtime) snapshot(ctx context.Context, req handlers.MetricRequest) any {
	d, err := dr.source.Dashboard(ctx, req.BusinessID, req.Filter, req.Period)
	if err != nil {
		dr.logger.Warn("live dashboard refresh failed", zap.String("businessId", req.BusinessID), zap.Error(err))
		return map[string]any{"type": "dashboard.error", "message": "dashboard unavailable"}
	}
	return map[string]any{"type": "dashboard.state", "data": d}
}

// NotifyBusiness schedules a push of fresh dashboards to the business's subscribers.
func (s *Server) NotifyBusiness(businessID string) {
	s.dashboard.schedule(strings.TrimSpace(businessID), refreshDebounce)
}

// DashboardWS streams dashboard snapshots. It runs behind BusinessAuth and
// accepts the same query parameters as the dashboard endpoint.
func (s *Server) DashboardWS(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.ParseMetricRequest(r, s.location)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn, request: req}
	unsubscribe := s.dashboard.subscribe(req.BusinessID, client)
	defer unsubscribe()

	_ = client.writeJSON(s.dashboard.snapshot(ctx, req))

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	interval := s.Config.WSHeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}
