// server/http/server.go
package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/ViniZap4/lumi-notes/auth"
	"github.com/ViniZap4/lumi-notes/autosave"
	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/metrics"
	"github.com/ViniZap4/lumi-notes/store"
	"github.com/ViniZap4/lumi-notes/workspace"
	"github.com/ViniZap4/lumi-notes/ws"
)

type Deps struct {
	Store     store.Store
	Workspace *workspace.Workspace
	Hub       *ws.Hub
	Auth      *auth.Checker
	Metrics   *metrics.Collector
	Log       zerolog.Logger
	ExportDir string
	// Engine options applied to every editing session.
	Engine []autosave.Option
}

type Server struct {
	store     store.Store
	workspace *workspace.Workspace
	hub       *ws.Hub
	auth      *auth.Checker
	metrics   *metrics.Collector
	log       zerolog.Logger
	exportDir string
	engine    []autosave.Option
	validate  *validator.Validate
}

func NewServer(d Deps) *Server {
	if d.Auth == nil {
		d.Auth = auth.NewChecker("", "")
	}
	return &Server{
		store:     d.Store,
		workspace: d.Workspace,
		hub:       d.Hub,
		auth:      d.Auth,
		metrics:   d.Metrics,
		log:       d.Log,
		exportDir: d.ExportDir,
		engine:    d.Engine,
		validate:  validator.New(),
	}
}

// App builds the fiber application with every route mounted.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "lumi",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	if s.metrics != nil {
		app.Use(s.metrics.Middleware())
	}
	app.Use(s.requestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type, " + auth.Header,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := app.Group("/api", s.auth.Middleware())

	api.Get("/folders", s.HandleFolders)
	api.Post("/folders", s.HandleCreateFolder)
	api.Put("/folders/:id", s.HandleRenameFolder)
	api.Delete("/folders/:id", s.HandleDeleteFolder)

	api.Get("/notes", s.HandleNotes)
	api.Post("/notes", s.HandleCreateNote)
	api.Get("/notes/:id", s.HandleGetNote)
	api.Put("/notes/:id", s.HandleUpdateNote)
	api.Delete("/notes/:id", s.HandleDeleteNote)
	api.Post("/notes/:id/pin", s.HandleTogglePin)
	api.Post("/notes/:id/move", s.HandleMoveNote)
	api.Get("/notes/:id/html", s.HandleNoteHTML)
	api.Get("/notes/:id/markdown", s.HandleNoteMarkdown)

	api.Get("/selection", s.HandleSelection)
	api.Put("/selection", s.HandleSelect)

	api.Post("/import", s.HandleImport)
	api.Post("/export", s.HandleExport)

	sockets := app.Group("/ws", s.auth.Middleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	sockets.Get("/", websocket.New(func(c *websocket.Conn) {
		s.hub.HandleConnection(c)
	}))
	sockets.Get("/notes/:id", websocket.New(func(c *websocket.Conn) {
		s.RunSession(c, c.Params("id"))
	}))

	return app
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, domain.ErrNotFound):
		code = fiber.StatusNotFound
	case domain.IsValidation(err), errors.As(err, &ve):
		code = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		code = fiber.StatusUnauthorized
	}

	if code >= fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := s.handleError(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		s.log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("took", time.Since(start)).
			Msg("request")
		return nil
	}
}
