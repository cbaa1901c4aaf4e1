// Package monitor periodically snapshots server health to a status file.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Dependencies holds all dependencies for the monitor service. Nil funcs
// report zero values.
type Dependencies struct {
	Logger           *slog.Logger
	StatusPath       string
	Interval         time.Duration
	Missions         int
	Sessions         func() int
	DatabaseInMemory func() bool
	TelemetryOnline  func() bool
}

// Status is one health snapshot.
type Status struct {
	Time             time.Time `json:"time"`
	Uptime           string    `json:"uptime"`
	ActiveSessions   int       `json:"activeSessions"`
	Missions         int       `json:"missions"`
	DatabaseInMemory bool      `json:"databaseInMemory"`
	TelemetryOnline  bool      `json:"telemetryOnline"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current snapshot.
func (s *Service) Status() Status {
	st := Status{
		Time:     time.Now().UTC(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Missions: s.deps.Missions,
	}
	if s.deps.Sessions != nil {
		st.ActiveSessions = s.deps.Sessions()
	}
	if s.deps.DatabaseInMemory != nil {
		st.DatabaseInMemory = s.deps.DatabaseInMemory()
	}
	if s.deps.TelemetryOnline != nil {
		st.TelemetryOnline = s.deps.TelemetryOnline()
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "path", s.deps.StatusPath, "interval", s.deps.Interval)

		var statusFile *os.File
		if s.deps.StatusPath != "" {
			var err error
			statusFile, err = os.Create(s.deps.StatusPath)
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			s.write(statusFile)
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Service) write(statusFile *os.File) {
	st := s.Status()
	s.deps.Logger.Debug("Status", "activeSessions", st.ActiveSessions, "databaseInMemory", st.DatabaseInMemory, "telemetryOnline", st.TelemetryOnline)

	if statusFile == nil {
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.deps.Logger.Error("Error encoding status", "error", err)
		return
	}
	if err := statusFile.Truncate(0); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
		return
	}
	if _, err := statusFile.WriteAt(append(data, '\n'), 0); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
