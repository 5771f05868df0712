// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/app/handlers"
	"github.com/cantalab/leadflow/app/middleware"
	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	WhatsApp     *handlers.WhatsAppHandler
	Leads        *handlers.LeadHandler
	Sequences    *handlers.SequenceHandler
	LyricRequest *handlers.LyricRequestHandler
	AppConfig    *handlers.AppConfigHandler
	Media        *handlers.MediaHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	cfg      *config.ProductionConfig
	logger   *logrus.Entry
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, cfg *config.ProductionConfig, logger *logrus.Entry) Router {
	r := &FiberRouter{
		handlers: h,
		cfg:      cfg,
		logger:   logger,
	}

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 16 * 1024 * 1024
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Leadflow API",
		ServerHeader: "Leadflow",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("setting up routes")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.metricsPath(), adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Stored inbound media; the public base URL of saved messages points here
	r.app.Get("/media/*", r.handlers.Media.Serve)

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	limit := r.cfg.Security.GlobalRateLimit
	if limit <= 0 {
		limit = 600
	}
	api.Use(limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	whatsapp := api.Group("/whatsapp")
	whatsapp.Get("/status", r.handlers.WhatsApp.Status)
	whatsapp.Get("/number", r.handlers.WhatsApp.Number)
	whatsapp.Post("/send-message", r.handlers.WhatsApp.SendMessage)
	whatsapp.Post("/mark-read", r.handlers.WhatsApp.MarkRead)

	leads := api.Group("/leads")
	leads.Get("/", r.handlers.Leads.List)
	// Registered before /:id so "export" is not parsed as an id
	leads.Get("/export", r.handlers.Leads.Export)
	leads.Get("/:id", r.handlers.Leads.Get)
	leads.Get("/:id/messages", r.handlers.Leads.Messages)
	leads.Post("/:id/sequences", r.handlers.Leads.Enroll)

	sequences := api.Group("/sequences")
	sequences.Get("/", r.handlers.Sequences.List)
	sequences.Post("/import", r.handlers.Sequences.Import)
	sequences.Get("/:trigger", r.handlers.Sequences.Get)
	sequences.Put("/:trigger", r.handlers.Sequences.Upsert)

	lyrics := api.Group("/lyric-requests")
	lyrics.Get("/", r.handlers.LyricRequest.List)
	lyrics.Post("/", r.handlers.LyricRequest.Create)
	lyrics.Get("/:id", r.handlers.LyricRequest.Get)

	api.Get("/config", r.handlers.AppConfig.Get)
	api.Put("/config", r.handlers.AppConfig.Update)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			r.logger.WithFields(logrus.Fields{
				"request_id": c.Locals("requestid"),
				"event":      "panic",
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("panic while serving request")
		},
	}))

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics(r.metricsPath(), "/api/v1/health"))
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	maxAge := r.cfg.Security.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     append(r.cfg.Security.AllowedHeaders, "X-Request-ID"),
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials && !containsWildcard(r.cfg.Security.AllowedOrigins),
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// Media is already compressed
				return strings.HasPrefix(c.Path(), "/media/")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health" || c.Path() == r.metricsPath()
			},
		}))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.WithField("address", address).Info("starting server")
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "leadflow-api",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "Endpoint not found",
		Error: dto.ErrorDetail{
			Code:    "NOT_FOUND",
			Details: c.Method() + " " + c.Path(),
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	entry := r.logger.WithFields(logrus.Fields{
		"request_id": c.Locals("requestid"),
		"path":       c.Path(),
		"method":     c.Method(),
		"status":     code,
	}).WithError(err)
	if code >= fiber.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "REQUEST_FAILED",
		},
	})
}

func (r *FiberRouter) metricsPath() string {
	if r.cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Metrics.Path
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return utils.UTCNow().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
