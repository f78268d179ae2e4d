package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wanderrhodes/wander/config"
	"github.com/wanderrhodes/wander/internal/chat"
	"github.com/wanderrhodes/wander/internal/llm"
	"github.com/wanderrhodes/wander/internal/maps"
	"github.com/wanderrhodes/wander/internal/retrieval"
)

// Run wires all dependencies and serves the HTTP API until the listener
// fails.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := cfg.LLM.Validate(); err != nil {
		return err
	}
	if err := cfg.Maps.Validate(); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Configured() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Redis.Addr(), err)
		}
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	mapsLogger := log.New(log.Writer(), "[MAPS] ", log.LstdFlags)
	mapsClient, err := maps.NewClient(maps.Config{
		APIKey:   cfg.Maps.APIKey,
		BaseURL:  cfg.Maps.BaseURL,
		Timeout:  cfg.Maps.Timeout,
		Cache:    rdb,
		CacheTTL: cfg.Maps.CacheTTL,
	}, mapsLogger)
	if err != nil {
		return err
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch := chat.NewOrchestrator(llmClient, mapsClient, orchLogger, chat.Options{
		Region:        cfg.General.Region,
		MaxIterations: cfg.Chat.MaxIterations,
		ToolTimeout:   cfg.Chat.ToolTimeout,
		RetrievalTopK: cfg.Chat.RetrievalTopK,
		StripInvalid:  cfg.Chat.StripInvalid,
	})

	if cfg.Retrieval.Enabled {
		idx, err := retrieval.Open(cfg.Retrieval.IndexPath)
		if err != nil {
			return fmt.Errorf("knowledge base: %w", err)
		}
		orch.AttachRetriever(idx)
	}

	api := e.Group("/api")

	ch := &ChatHandler{Orch: orch, Logger: baseLogger}
	chatGroup := api.Group("")
	if cfg.Guard.Enabled && rdb != nil {
		chatGroup.Use(usageGuard(rdb, cfg.Guard))
	}
	chatGroup.POST("/chat", ch.handle)

	wh := &WeatherHandler{}
	api.GET("/weather", wh.handle)

	ih := NewImageProxy(cfg.Proxy.AllowedHosts)
	api.GET("/image-proxy", ih.handle)

	if addr == "" {
		addr = cfg.General.Listen
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
