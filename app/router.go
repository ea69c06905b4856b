package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bitwise74/file-api/app/file"
	"bitwise74/file-api/app/mimes"
	"bitwise74/file-api/app/root"
	"bitwise74/file-api/aws"
	"bitwise74/file-api/cloudflare"
	"bitwise74/file-api/config"
	"bitwise74/file-api/db"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/blob/local"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/repository"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/middleware"
	"bitwise74/file-api/pkg/util"
	"bitwise74/file-api/pkg/validators"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

// Options are the router settings that don't live in Deps
type Options struct {
	JWTSecret       []byte
	CORS            []string
	RateLimit       int
	MaxRequestBytes int64
	Turnstile       middleware.TurnstileConfig
	Metrics         bool
}

// NewRouter builds every dependency from the loaded config and returns a
// ready to run router. Background jobs stop when ctx is done.
func NewRouter(ctx context.Context) (*gin.Engine, error) {
	if err := makeLogger(v.GetString("app.log_level")); err != nil {
		return nil, err
	}

	d, err := newDeps(ctx)
	if err != nil {
		return nil, err
	}

	if v.GetBool("sweeper.enabled") {
		if l, ok := d.Store.(blob.Lister); ok {
			service.NewSweeper(l, d.Store, d.Catalog, v.GetDuration("sweeper.grace")).
				Start(ctx, v.GetDuration("sweeper.interval"))
		} else {
			zap.L().Warn("Storage backend can't list objects, orphan sweeper disabled")
		}
	}

	return Routes(ctx, d, Options{
		JWTSecret:       []byte(v.GetString("jwt.secret")),
		CORS:            v.GetStringSlice("host.cors"),
		RateLimit:       v.GetInt("security.rate_limit"),
		MaxRequestBytes: config.MaxRequestBytes(),
		Turnstile: middleware.TurnstileConfig{
			Enabled: v.GetBool("cloudflare.turnstile.enabled"),
			Secret:  v.GetString("cloudflare.turnstile.secret_token"),
		},
		Metrics: v.GetBool("metrics.enabled"),
	}), nil
}

func newDeps(ctx context.Context) (*internal.Deps, error) {
	conn, err := db.New(v.GetString("db.driver"), v.GetString("db.dsn"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	var s blob.Store

	switch v.GetString("storage.type") {
	case "s3":
		s, err = aws.NewS3(ctx)
	case "r2":
		s, err = cloudflare.NewR2(ctx)
	case "local":
		dir := v.GetString("storage.local.root")
		if err = util.RequireMounted(dir); err == nil {
			s, err = local.New(dir, v.GetString("storage.local.public_url"))
		}
	default:
		err = errors.New("unknown storage type")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage, %w", v.GetString("storage.type"), err)
	}

	policy := access.AllowAll
	if v.GetBool("security.owner_only") {
		policy = access.OwnerOnly
	}

	c := catalog.New(repository.NewFiles(conn))

	return &internal.Deps{
		DB:             conn,
		Catalog:        c,
		Store:          s,
		Uploader:       service.NewUploader(config.UploadPolicy(), c, s, config.Defaults()),
		Retriever:      service.NewRetriever(c, s, policy),
		Policy:         policy,
		AllowedTypes:   config.AllowedTypes(),
		MaxUploadBytes: validators.MBToBytes(config.UploadPolicy().HardLimitMB),
	}, nil
}

// Routes registers every endpoint on a new router
func Routes(ctx context.Context, d *internal.Deps, o Options) *gin.Engine {
	if d.Policy == nil {
		d.Policy = access.AllowAll
	}

	router := gin.New()

	// cors refuses an empty origin list, no origins means same origin only
	if len(o.CORS) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     o.CORS,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken", "X-Filename"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	if o.Metrics {
		router.Use(middleware.NewMetricsMiddleware())

		// GET /metrics			-> Prometheus metrics
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 5 << 20

	jwt := middleware.NewJWTMiddleware(o.JWTSecret)
	turnstile := middleware.NewTurnstileMiddleware(o.Turnstile)
	rateLimiter := middleware.RateLimiterMiddleware(ctx, middleware.RateLimiterConfig{
		RequestsPerSecond: o.RateLimit,
		Burst:             o.RateLimit * 2,
		CleanupInterval:   time.Minute,
	})

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// GET /api/mimes		-> Lists every known extension
		m.GET("/mimes", cacheFor(60*60), mimes.Extensions)

		// GET /api/mimes/:filename	-> Resolves the MIME type of a filename
		m.GET("/mimes/:filename", cacheFor(60*60), mimes.Lookup)
	}

	ff := m.Group("/files", jwt)
	{
		// GET /api/files		-> Returns the user's files, newest first
		ff.GET("", func(c *gin.Context) { file.FileList(c, d) })

		// POST /api/files/upload	-> Validates and stores a new file
		ff.POST("/upload", turnstile, middleware.BodySizeLimiter(o.MaxRequestBytes), func(c *gin.Context) { file.FileUpload(c, d) })

		// POST /api/files/download	-> Streams a file, optionally restricted to some types
		ff.POST("/download", func(c *gin.Context) { file.FileDownload(c, d) })

		// GET /api/files/:id		-> Returns the record of a file
		ff.GET("/:id", func(c *gin.Context) { file.FileFetch(c, d) })

		// GET /api/files/:id/serve	-> Streams a file
		ff.GET("/:id/serve", func(c *gin.Context) { file.FileServe(c, d) })

		// GET /api/files/:id/url	-> Returns a direct link to a file
		ff.GET("/:id/url", func(c *gin.Context) { file.FileURL(c, d) })

		// GET /api/files/:id/owns	-> Checks if a user owns a file
		ff.GET("/:id/owns", func(c *gin.Context) { file.FileOwns(c, d) })

		// PUT|PATCH /api/files/:id	-> Updates the record of a file
		ff.PUT("/:id", func(c *gin.Context) { file.FileEdit(c, d) })
		ff.PATCH("/:id", func(c *gin.Context) { file.FileEdit(c, d) })

		// DELETE /api/files/:id	-> Deactivates a file
		ff.DELETE("/:id", func(c *gin.Context) { file.FileDelete(c, d) })
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not found",
			"requestID": c.GetString("requestID"),
		})
	})

	return router
}

func makeLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level, %w", err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger, %w", err)
	}

	zap.ReplaceGlobals(log)
	return nil
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
