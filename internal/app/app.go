package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spectriclabs/ecms-sync/internal/api"
	"github.com/spectriclabs/ecms-sync/internal/cache"
	"github.com/spectriclabs/ecms-sync/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger sets up the zap.Logger structured logger.
func SetupLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, logErr := zap.Config{
		Encoding:    "json",
		Level:       zap.NewAtomicLevelAt(level),
		OutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.ISO8601TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}.Build()
	if logErr != nil {
		log.Fatalf("Couldn't setup logger: %v", logErr)
	}

	return logger
}

// LoadConfig reads the configuration file and unmarshals
// it into a config.Configuration struct. A bare name is looked up
// as <name>.yml in the working directory. ECSYNC_* environment
// variables override the file.
func LoadConfig(configFile string) (*config.Configuration, error) {
	v := viper.New()
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5055)
	v.SetDefault("use_cache", true)
	v.SetDefault("cache_location", "./ecsynccache/")
	v.SetDefault("cache_max_bytes", 100000000)
	v.SetDefault("check_cache_every", 60)
	v.SetDefault("timezone", "local")
	v.SetDefault("missing_tstamp", "utc")
	v.SetDefault("molecule_dir", "./molecules")

	v.SetEnvPrefix("ecsync")
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if filepath.Ext(configFile) != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFile)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
	}

	configuration := &config.Configuration{}
	if err := v.Unmarshal(configuration); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", configFile, err)
	}
	if _, err := configuration.SyncDefaults(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configFile, err)
	}
	return configuration, nil
}

// SetupCache creates the cache directories and kicks off one cache
// monitor each for minio downloads and synchronize responses. The
// monitors stop with ctx.
func SetupCache(ctx context.Context, configuration *config.Configuration, logger *zap.Logger) error {
	for _, dir := range []string{cache.MinioDir, cache.ResponseDir} {
		cachePath := filepath.Join(configuration.CacheLocation, dir)
		if err := os.MkdirAll(cachePath, 0755); err != nil {
			return fmt.Errorf("creating cache directory %s: %w", cachePath, err)
		}
		go cache.CheckCache(
			ctx,
			cachePath,
			configuration.CheckCacheEvery,
			configuration.CacheMaxBytes,
			logger,
		)
	}
	return nil
}

func SetupServer(a *api.API) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Debug = a.Cfg.Debug

	// Setup Middleware
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	a.Register(e)

	// Add Prometheus as middleware for metrics gathering
	p := prometheus.NewPrometheus("ecms_sync", nil)
	p.Use(e)

	return e
}

// Serve runs the HTTP service until ctx is done, then shuts it down
// with a timeout of 10 seconds.
func Serve(ctx context.Context, configuration *config.Configuration, logger *zap.Logger) error {
	if configuration.UseCache {
		if err := SetupCache(ctx, configuration, logger); err != nil {
			return err
		}
	}

	e := SetupServer(api.NewSyncAPI(configuration, logger))

	address := fmt.Sprintf("%s:%d", configuration.Host, configuration.Port)
	logger.Info("Starting server", zap.String("address", address))
	logger.Debug("Registered routes", zap.Strings("routes", routes(e)))
	errs := make(chan error, 1)
	go func() {
		errs <- e.Start(address)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down the server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// routes lists the registered method and path pairs, for diagnostics.
func routes(e *echo.Echo) []string {
	var out []string
	for _, r := range e.Routes() {
		if strings.HasPrefix(r.Path, "/sync") {
			out = append(out, r.Method+" "+r.Path)
		}
	}
	return out
}
