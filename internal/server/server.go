// Package server exposes game sessions over WebSocket. Each connection gets
// its own game.Session; the server only decodes client messages, forwards
// them to the session and relays whatever the session sends back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/pedrabranca/geoquest/internal/config"
	"github.com/pedrabranca/geoquest/internal/events"
	"github.com/pedrabranca/geoquest/internal/game"
	"github.com/pedrabranca/geoquest/internal/geo"
	"github.com/pedrabranca/geoquest/internal/logging"
	"github.com/pedrabranca/geoquest/internal/mission"
	"github.com/pedrabranca/geoquest/internal/platform"
	"github.com/pedrabranca/geoquest/internal/storage"
	"github.com/pedrabranca/geoquest/pkg/protocol"
)

const instrumentationName = "github.com/pedrabranca/geoquest/internal/server"

// PlayerStore remembers players between sessions. Implemented by
// storage.Players.
type PlayerStore interface {
	Load(player string) storage.PlayerRecord
	Save(player string, rec storage.PlayerRecord) bool
}

// MetricRecorder accepts client-side measurements. Implemented by
// telemetry.Manager.
type MetricRecorder interface {
	RecordClientMetric(session, name string, fields map[string]any, at time.Time) error
}

// Options configure a Server. Recorder, Metrics, Store and Players may be
// nil.
type Options struct {
	Server   config.ServerConfig
	Game     config.GameConfig
	Catalog  []mission.Mission
	Logger   *slog.Logger
	BusOpts  []events.Option
	Recorder game.Recorder
	Metrics  MetricRecorder
	Store    game.ProgressStore
	Players  PlayerStore
}

// Server accepts WebSocket players and serves the catalog over HTTP.
type Server struct {
	opts     Options
	logger   *slog.Logger
	hub      *hub
	upgrader ws.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc

	sessions metric.Int64UpDownCounter
}

// New creates a server. It does not listen until ListenAndServe is called.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Server.WriteWait <= 0 {
		opts.Server.WriteWait = 10 * time.Second
	}
	if opts.Server.PongWait <= 0 {
		opts.Server.PongWait = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "server"),
		hub:    newHub(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	sessions, err := otel.Meter(instrumentationName).Int64UpDownCounter("geoquest.sessions.active",
		metric.WithDescription("Connected player sessions"))
	if err != nil {
		s.logger.Warn("Failed to create sessions counter", "error", err)
	}
	s.sessions = sessions
	return s
}

// Sessions returns the number of connected players.
func (s *Server) Sessions() int {
	return s.hub.count()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /missions", s.handleMissions)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "address", s.opts.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Server.WriteWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close disconnects every player.
func (s *Server) Close() {
	s.cancel()
	s.hub.closeAll()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.opts.Server.AllowedOrigins
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.ContainsFunc(allowed, func(a string) bool {
		return strings.EqualFold(a, origin)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.hub.count(),
	})
}

func (s *Server) handleMissions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.MissionsPayload{Missions: game.MissionInfos(s.opts.Catalog)})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer wsConn.Close()

	ctx, cancel := context.WithCancel(logging.WithContextAttrs(s.ctx, slog.String("remote", r.RemoteAddr)))
	defer cancel()

	id := uuid.NewString()
	logger := s.logger.With("session", id)
	cl := newClient(wsConn, s.opts.Server.WriteWait, s.opts.Server.PongWait, logger)

	session, err := game.NewSession(ctx, game.Deps{
		ID:       id,
		Catalog:  s.opts.Catalog,
		Config:   s.opts.Game,
		Logger:   s.opts.Logger,
		BusOpts:  s.opts.BusOpts,
		Notifier: cl,
		Recorder: s.opts.Recorder,
		Store:    s.opts.Store,
	})
	if err != nil {
		logger.Error("Failed to create session", "error", err)
		return
	}

	c := &conn{session: session, client: cl}
	s.hub.add(c)
	s.addSessions(ctx, 1)
	logger.InfoContext(ctx, "Client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		cl.writeLoop()
	}()
	go func() {
		<-ctx.Done()
		cl.close()
		_ = wsConn.SetReadDeadline(time.Now())
	}()

	cl.readLoop(func(data []byte) {
		s.dispatch(ctx, c, data)
	})

	session.Close()
	s.savePlayer(c, nil)
	s.hub.remove(id)
	s.addSessions(context.Background(), -1)
	cl.close()
	<-writerDone
	logger.InfoContext(ctx, "Client disconnected", "player", c.player)
}

func (s *Server) addSessions(ctx context.Context, n int64) {
	if s.sessions != nil {
		s.sessions.Add(ctx, n)
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		c.client.sendError("", err)
		return
	}

	switch env.Type {
	case protocol.TypeHello:
		p, err := protocol.DecodePayload[protocol.HelloPayload](env)
		if err != nil {
			c.client.sendError(env.Type, err)
			return
		}
		s.hello(ctx, c, p)

	case protocol.TypeLocation:
		p, err := protocol.DecodePayload[protocol.LocationPayload](env)
		if err != nil {
			c.client.sendError(env.Type, err)
			return
		}
		fix := game.Fix{
			Position: geo.Coordinate{Lat: p.Lat, Lng: p.Lng},
			Accuracy: p.Accuracy,
			Heading:  p.Heading,
		}
		if p.Timestamp > 0 {
			fix.At = time.UnixMilli(p.Timestamp)
		}
		if c.session.UpdateLocation(fix) && fix.Position.Valid() {
			s.savePlayer(c, &fix.Position)
		}

	case protocol.TypeStartMission, protocol.TypeCompleteMission:
		p, err := protocol.DecodePayload[protocol.MissionRequestPayload](env)
		if err != nil {
			c.client.sendError(env.Type, err)
			return
		}
		if env.Type == protocol.TypeStartMission {
			err = c.session.StartMission(mission.ID(p.MissionID))
		} else {
			err = c.session.CompleteMission(mission.ID(p.MissionID))
		}
		if err != nil {
			c.client.sendError(env.Type, err)
			return
		}
		c.client.ack(env.Type)

	case protocol.TypeListMissions:
		c.session.SendMissions()
		c.session.SendProgress()

	case protocol.TypeMetric:
		p, err := protocol.DecodePayload[protocol.MetricPayload](env)
		if err != nil {
			c.client.sendError(env.Type, err)
			return
		}
		if s.opts.Metrics != nil {
			if err := s.opts.Metrics.RecordClientMetric(c.session.ID(), p.Name, p.Fields, time.Now()); err != nil {
				c.client.sendError(env.Type, err)
				return
			}
		}
		c.client.ack(env.Type)

	default:
		c.client.sendError(env.Type, fmt.Errorf("unknown message type: %q", env.Type))
	}
}

func (s *Server) hello(ctx context.Context, c *conn, p protocol.HelloPayload) {
	caps := platform.Detect(platform.Report(p.Features))
	c.player = p.Player

	if s.opts.Players != nil && p.Player != "" {
		c.record = s.opts.Players.Load(p.Player)
		if c.record.Sessions > 0 {
			s.logger.DebugContext(ctx, "Returning player", "player", p.Player, "sessions", c.record.Sessions, "lastSeen", c.record.LastSeen)
		}
		c.record.Sessions++
		c.record.Capabilities = caps
	}

	c.session.Hello(ctx, p.Player, caps)
	s.savePlayer(c, nil)
}

// savePlayer stores the player's record, moving its last position to pos
// when given. Only called from the connection's read goroutine.
func (s *Server) savePlayer(c *conn, pos *geo.Coordinate) {
	if s.opts.Players == nil || c.player == "" {
		return
	}
	if pos != nil {
		p := *pos
		c.record.LastPosition = &p
	}
	c.record.LastSeen = time.Now().UTC()
	if !s.opts.Players.Save(c.player, c.record) {
		s.logger.Warn("Failed to save player", "player", c.player)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
