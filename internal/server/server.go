package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"clipvault/internal/blob"
	"clipvault/internal/broadcast"
	"clipvault/internal/database"
	"clipvault/internal/server/middlewares"
	"clipvault/internal/share"
)

// An IOC is an Inversion Of Control pattern used to init the server package.
type IOC struct {
	Version     string
	Database    database.Client
	Blobs       *blob.Store
	Shares      share.Registry
	Broadcaster *broadcast.Broadcaster
	Logger      logrus.FieldLogger
	// Auth params
	Password      string
	CookieKey     []byte
	CookieTTL     time.Duration
	HeartbeatRate time.Duration
}

// EchoEngine instantiates the web server.
func EchoEngine(ctrl IOC) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	if ctrl.Logger == nil {
		ctrl.Logger = logrus.StandardLogger()
	}
	if ctrl.HeartbeatRate == 0 {
		ctrl.HeartbeatRate = 25 * time.Second
	}

	////////////
	// Router //
	////////////

	cookieToken := middlewares.AuthCookieValue(ctrl.CookieKey)

	router := engine.Group("/api")
	restricted := router.Group("")
	restricted.Use(middlewares.Auth(ctrl.Password, cookieToken))

	// generic handlers
	//
	router.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Good!",
			"version": ctrl.Version,
		})
	})
	restricted.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Good!",
			"version": ctrl.Version,
		})
	})
	restricted.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	//
	// auth handlers
	//
	auth := &auth{
		password:    ctrl.Password,
		cookieToken: cookieToken,
		cookieTTL:   ctrl.CookieTTL,
	}
	router.POST("/auth/verify", auth.Verify)
	router.POST("/auth/logout", auth.Logout)

	//
	// clipboard handlers
	//
	clipboard := &clipboard{
		db:     ctrl.Database,
		blobs:  ctrl.Blobs,
		broker: ctrl.Broadcaster,
	}
	restricted.GET("/clipboard", clipboard.List)
	restricted.POST("/clipboard", clipboard.Create)
	restricted.GET("/clipboard/:id", clipboard.Get)
	restricted.DELETE("/clipboard/:id", clipboard.Delete)
	restricted.POST("/clipboard/reorder", clipboard.Reorder)
	restricted.GET("/files/:id", clipboard.File)

	//
	// event stream handler
	//
	events := &events{
		broker:    ctrl.Broadcaster,
		heartbeat: ctrl.HeartbeatRate,
	}
	restricted.GET("/events", events.Stream)

	//
	// share handlers
	//
	shr := &shareHandler{
		db:     ctrl.Database,
		shares: ctrl.Shares,
		blobs:  ctrl.Blobs,
	}
	// management (main credential required)
	restricted.GET("/share", shr.List)
	restricted.POST("/share", shr.Create)
	restricted.DELETE("/share/:token", shr.Delete)
	restricted.POST("/share/:token/revoke", shr.Revoke)
	// public read path (share password only)
	router.GET("/share/:token", shr.Meta)
	router.POST("/share/:token/verify", shr.Verify)
	router.GET("/share/:token/file", shr.File)
	router.GET("/share/:token/download", shr.Download)

	return engine
}

// PrintRoutes prints the Echo engine exposed routes.
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
