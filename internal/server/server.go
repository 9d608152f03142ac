// Package server exposes the admin API over echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/folio/config"
	"github.com/mohammad-safakhou/folio/internal/content"
	"github.com/mohammad-safakhou/folio/internal/github"
	"github.com/mohammad-safakhou/folio/internal/imaging"
	"github.com/mohammad-safakhou/folio/internal/ratelimit"
	"github.com/mohammad-safakhou/folio/internal/runtime"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

const Version = "2.0.0"

// bodySlack is request-body headroom above the image ceiling for multipart framing.
const bodySlack = 1 << 20

// AppStore is everything the handlers need from the document store.
type AppStore interface {
	DashboardStore
	CommunicationStore
	content.ActivityLog
}

// Deps groups the collaborators the routes are built from.
type Deps struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Store    AppStore
	Content  *content.Service
	Tasks    tasks.Dispatcher
	Issuer   *runtime.TokenIssuer
	Creds    *runtime.Credentials
	Limiters *ratelimit.Limiters
	Registry *prometheus.Registry
	DocsPath string
}

// New builds the echo instance with every route mounted.
func New(d Deps) *echo.Echo {
	cfg := d.Config
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(d.Log)
	e.Use(middleware.Recover())
	e.Use(requestLogger(d.Log))
	if d.Registry != nil {
		e.Use(NewMetrics(d.Registry).Middleware())
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders: []string{runtime.NewTokenHeader},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (cfg.GitHub.ImageMaxBytes+bodySlack)/1024)))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Portfolio Backend API", "version": Version, "docs": "/docs"})
	})
	registerDocs(e, d.DocsPath)

	limiters := d.Limiters
	if limiters == nil {
		limiters, _ = ratelimit.New(config.RateLimitConfig{}, nil, nil)
	}
	api := e.Group("/api/v1", limiters.For(ratelimit.BucketDefault))
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	requireAuth := runtime.EchoAuthMiddleware(d.Issuer, d.Log.Warnf)
	save := limiters.For(ratelimit.BucketSave)

	auth := &AuthHandler{Creds: d.Creds, Issuer: d.Issuer, Activity: d.Store, Tasks: d.Tasks}
	auth.Register(api.Group("/auth"), limiters.For(ratelimit.BucketLogin), requireAuth)

	dash := &DashboardHandler{
		Store:        d.Store,
		CountersDoc:  cfg.Collections.CountersDocument,
		WeeklyDays:   cfg.Collections.WeeklyWindowDays,
		DefaultLimit: cfg.Limits.LogDefaultLimit,
		MaxLimit:     cfg.Limits.LogMaxLimit,
	}
	dash.Register(api.Group("/dashboard", requireAuth))

	(&ProjectsHandler{Content: d.Content}).Register(api.Group("/projects", requireAuth), save)
	(&ContactsHandler{Content: d.Content}).Register(api.Group("/contacts", requireAuth), save)
	(&KnowledgeHandler{Content: d.Content}).Register(api.Group("/knowledge", requireAuth), save)
	(&InstructionsHandler{Content: d.Content}).Register(api.Group("/system-instructions", requireAuth), save)

	comm := &CommunicationHandler{Store: d.Store, Activity: d.Store, Tasks: d.Tasks, ListLimit: cfg.Limits.CommunicationListLimit}
	comm.Register(api.Group("/communication"), requireAuth)

	return e
}

func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
			}).Info("request")
			return nil
		},
	})
}

// Run wires the production dependencies and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	dsn, err := runtime.BuildPostgresDSN(cfg)
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.WithError(err).Warn("startup migration failed")
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	var limiterClient redis.UniversalClient
	rdb, err := runtime.RedisConn(ctx, cfg.Storage.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		limiterClient = rdb
	}
	limiters, err := ratelimit.New(cfg.RateLimit, limiterClient, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	taskCounter := tasks.NewCounter()
	reg.MustRegister(taskCounter)
	queue := tasks.New(tasks.Options{
		Workers: cfg.Tasks.Workers,
		Buffer:  cfg.Tasks.Buffer,
		Timeout: cfg.Tasks.Timeout,
		Logger:  log.WithField("component", "tasks"),
		Counter: taskCounter,
	})

	creds, err := runtime.NewCredentials(cfg.Auth)
	if err != nil {
		return err
	}
	issuer := runtime.NewTokenIssuer(cfg.Auth)

	paths := content.PathsFromConfig(cfg.GitHub)
	gh := github.New(github.Options{
		Token:       cfg.GitHub.Token,
		Branch:      cfg.GitHub.Branch,
		BaseURL:     cfg.GitHub.BaseURL,
		DefaultRepo: paths.Projects.Repo,
		Timeout:     cfg.GitHub.Timeout,
	})
	svc := &content.Service{
		Files:    gh,
		Tasks:    queue,
		Images:   imaging.New(cfg.GitHub.ImageMaxBytes, cfg.GitHub.ImageMaxEdge, cfg.GitHub.ImageMaxPixels),
		Activity: st,
		History:  st,
		Paths:    paths,
		Limits:   content.LimitsFromConfig(cfg.Limits),
		Log:      log.WithField("component", "content"),
	}

	e := New(Deps{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Content:  svc,
		Tasks:    queue,
		Issuer:   issuer,
		Creds:    creds,
		Limiters: limiters,
		Registry: reg,
	})

	addr := cfg.General.Listen
	if addr != "" && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("background tasks did not drain")
	}
	return nil
}

