package server

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/coderun"
	"github.com/oarkflow/coderun/pkg/builtin"
	"github.com/oarkflow/coderun/pkg/config"
)

const DefaultMaxSessions = 64

type Config struct {
	Version string
	// Engine seeds every session: runtime limits, cache and host values.
	Engine      *config.Config
	MaxSessions int
	Logger      *log.Logger
	// DisableRequestLog turns off the per-request access log.
	DisableRequestLog bool
}

type Server struct {
	app      *fiber.App
	config   Config
	logger   *log.Logger
	cache    *coderun.ProgramCache
	mu       sync.RWMutex
	sessions map[string]*session
}

// session owns one engine. Its mutex serialises every call into the
// engine, the scheduler and continuations fired by Tick.
type session struct {
	mu        sync.Mutex
	id        string
	name      string
	engine    *coderun.Engine
	sched     *builtin.Scheduler
	out       bytes.Buffer
	createdAt time.Time
}

type ScriptRequest struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

type TickRequest struct {
	Count     int `json:"count"`
	ElapsedMs int `json:"elapsed_ms"`
}

type ErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

type SessionView struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name,omitempty"`
	State     string                    `json:"state"`
	Pending   uint64                    `json:"pending,omitempty"`
	Ticks     uint64                    `json:"ticks"`
	Scheduled int                       `json:"scheduled"`
	Output    string                    `json:"output"`
	Values    map[string]coderun.Object `json:"values"`
	Error     *ErrorView                `json:"error,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type CheckResponse struct {
	Valid bool       `json:"valid"`
	Error *ErrorView `json:"error,omitempty"`
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		cfg.Engine = &config.Config{}
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = cfg.Engine.Server.MaxSessions
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}

	app := fiber.New(fiber.Config{
		JSONEncoder: func(v any) ([]byte, error) {
			return json.Marshal(v)
		},
		JSONDecoder: func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	server := &Server{
		app:      app,
		config:   cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*session),
	}
	// Sessions share one program cache so identical scripts parse once.
	if cfg.Engine.Cache.Enabled {
		cache, err := coderun.NewProgramCache(cfg.Engine.Cache.MaxPrograms)
		if err != nil {
			return nil, err
		}
		server.cache = cache
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())
	if !s.config.DisableRequestLog {
		s.app.Use(logger.New())
	}

	s.app.Get("/api/health", s.healthHandler)
	s.app.Post("/api/check", s.checkHandler)

	s.app.Get("/api/sessions", s.listSessionsHandler)
	s.app.Post("/api/sessions", s.createSessionHandler)
	s.app.Get("/api/sessions/:id", s.getSessionHandler)
	s.app.Delete("/api/sessions/:id", s.deleteSessionHandler)
	s.app.Post("/api/sessions/:id/compile", s.compileHandler)
	s.app.Post("/api/sessions/:id/tick", s.tickHandler)
	s.app.Post("/api/sessions/:id/pause", s.pauseHandler)
	s.app.Post("/api/sessions/:id/advance", s.advanceHandler)
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	count := len(s.sessions)
	s.mu.RUnlock()
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.config.Version,
		"sessions":  count,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) checkHandler(c *fiber.Ctx) error {
	var req ScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	e, err := s.newEngine("")
	if err != nil {
		return err
	}
	if err := e.Check(req.Script); err != nil {
		return c.JSON(CheckResponse{Valid: false, Error: errorView(err)})
	}
	return c.JSON(CheckResponse{Valid: true})
}

func (s *Server) listSessionsHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].createdAt.Before(list[j].createdAt)
	})

	views := make([]SessionView, 0, len(list))
	for _, sess := range list {
		sess.mu.Lock()
		views = append(views, sess.view())
		sess.mu.Unlock()
	}
	return c.JSON(views)
}

func (s *Server) createSessionHandler(c *fiber.Ctx) error {
	var req ScriptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	sess, err := s.newSession(req.Name)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.mu.Lock()
	if len(s.sessions) >= s.config.MaxSessions {
		s.mu.Unlock()
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Session limit reached"})
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.logger.Info().Str("session", sess.id).Str("name", sess.name).Msg("session created")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if req.Script != "" {
		sess.engine.Compile(req.Script)
	}
	return c.Status(fiber.StatusCreated).JSON(sess.view())
}

func (s *Server) getSessionHandler(c *fiber.Ctx) error {
	return s.withSession(c, func(sess *session) error {
		return c.JSON(sess.view())
	})
}

func (s *Server) deleteSessionHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	sess.mu.Lock()
	sess.sched.Clear()
	sess.engine.Reset()
	sess.mu.Unlock()
	s.logger.Info().Str("session", id).Msg("session deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) compileHandler(c *fiber.Ctx) error {
	var req ScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	return s.withSession(c, func(sess *session) error {
		sess.sched.Clear()
		sess.out.Reset()
		if err := sess.engine.Compile(req.Script); err != nil {
			s.logger.Debug().Str("session", sess.id).Err(err).Msg("compile reported diagnostics")
		}
		return c.JSON(sess.view())
	})
}

func (s *Server) tickHandler(c *fiber.Ctx) error {
	var req TickRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.ElapsedMs <= 0 && s.config.Engine.Server.TickRate > 0 {
		req.ElapsedMs = 1000 / s.config.Engine.Server.TickRate
	}
	return s.withSession(c, func(sess *session) error {
		for i := 0; i < req.Count; i++ {
			now := time.Now()
			if req.ElapsedMs > 0 {
				now = sess.sched.Now().Add(time.Duration(req.ElapsedMs) * time.Millisecond)
			}
			sess.sched.Tick(now)
		}
		return c.JSON(sess.view())
	})
}

func (s *Server) pauseHandler(c *fiber.Ctx) error {
	return s.withSession(c, func(sess *session) error {
		sess.engine.Pause()
		return c.JSON(sess.view())
	})
}

func (s *Server) advanceHandler(c *fiber.Ctx) error {
	return s.withSession(c, func(sess *session) error {
		err := sess.engine.Advance()
		if errors.Is(err, coderun.ErrNotPaused) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(sess.view())
	})
}

func (s *Server) withSession(c *fiber.Ctx, fn func(*session) error) error {
	s.mu.RLock()
	sess, ok := s.sessions[c.Params("id")]
	s.mu.RUnlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *Server) newEngine(name string) (*coderun.Engine, error) {
	opts := []coderun.Option{
		coderun.WithName(name),
		coderun.WithLogger(s.logger),
		coderun.WithRuntimeConfig(s.config.Engine.RuntimeConfig()),
	}
	if s.cache != nil {
		opts = append(opts, coderun.WithProgramCache(s.cache))
	}
	e, err := coderun.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.config.Engine.Apply(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Server) newSession(name string) (*session, error) {
	id := xid.New().String()
	if name == "" {
		name = id
	}
	e, err := s.newEngine(name)
	if err != nil {
		return nil, err
	}
	sess := &session{
		id:        id,
		name:      name,
		engine:    e,
		sched:     builtin.NewScheduler(time.Now()),
		createdAt: time.Now(),
	}
	if err := builtin.New(sess.sched, &sess.out, s.logger).Register(e); err != nil {
		return nil, err
	}
	return sess, nil
}

func (sess *session) view() SessionView {
	return SessionView{
		ID:        sess.id,
		Name:      sess.name,
		State:     sess.engine.State().String(),
		Pending:   uint64(sess.engine.Pending()),
		Ticks:     sess.sched.Ticks(),
		Scheduled: sess.sched.Pending(),
		Output:    sess.out.String(),
		Values:    sess.engine.Values(),
		Error:     errorView(sess.engine.Err()),
		CreatedAt: sess.createdAt,
	}
}

func errorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	var cerr *coderun.Error
	if errors.As(err, &cerr) {
		return &ErrorView{Code: string(cerr.Code), Message: cerr.Detail(), Line: cerr.Line}
	}
	return &ErrorView{Code: string(coderun.ErrCodeUnknown), Message: err.Error()}
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting coderun server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down coderun server")
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		sess.sched.Clear()
		sess.mu.Unlock()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Close()
	}
	return s.app.Shutdown()
}
