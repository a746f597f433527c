package server

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/kasblog/kasblog/internal/database"
	"github.com/kasblog/kasblog/internal/server/middlewares"
	"github.com/kasblog/kasblog/internal/server/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// DefaultBodyLimit is the maximum size of a short URL creation request.
const DefaultBodyLimit = "64K"

// An IOC is an Iversion Of Control pattern used to init the server package.
type IOC struct {
	Version  string
	Database database.Client
	Logger   *logrus.Logger
	// Short URL params
	ShortURLTTL time.Duration
	StoreKeys   bool
	BodyLimit   string
	// CORS params
	AllowedOrigins []string
	// Clock, time.Now when nil
	Now func() time.Time
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	if ctrl.Logger == nil {
		ctrl.Logger = logrus.New()
		ctrl.Logger.SetOutput(io.Discard)
	}
	if ctrl.Now == nil {
		ctrl.Now = time.Now
	}
	if ctrl.BodyLimit == "" {
		ctrl.BodyLimit = DefaultBodyLimit
	}
	origins := ctrl.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
		Output: ctrl.Logger.Writer(),
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler(ctrl.Logger)

	////////////
	// Router //
	////////////

	router := engine.Group("")
	api := router.Group("/api")

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	started := ctrl.Now()
	api.GET("/health", func(c echo.Context) error {
		now := ctrl.Now()
		return c.JSON(http.StatusOK, echo.Map{
			"status":    "ok",
			"timestamp": now.UTC().Format(time.RFC3339Nano),
			"uptime":    now.Sub(started).Seconds(),
		})
	})

	//
	// short url handlers
	//
	shorturl := &shortURL{
		service: service.NewShortURLService(
			ctrl.Database,
			service.WithTTL(ctrl.ShortURLTTL),
			service.WithKeyEscrow(ctrl.StoreKeys),
			service.WithClock(ctrl.Now),
		),
	}
	api.POST("/short", shorturl.Create, middleware.BodyLimit(ctrl.BodyLimit))
	api.GET("/short/:shortId", shorturl.Show)
	api.GET("/stats", shorturl.Stats)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
