package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/proxyconsole/internal/config"
	"github.com/router-for-me/proxyconsole/internal/db"
	"github.com/router-for-me/proxyconsole/internal/http/api/admin"
	permissions "github.com/router-for-me/proxyconsole/internal/http/api/admin/permissions"
	"github.com/router-for-me/proxyconsole/internal/logging"
	"github.com/router-for-me/proxyconsole/internal/models"
	"github.com/router-for-me/proxyconsole/internal/proxy"
	"github.com/router-for-me/proxyconsole/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// CreateAdminParams holds inputs for admin creation.
type CreateAdminParams struct {
	Username    string
	Password    string
	SuperAdmin  bool
	Permissions []string
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	consoleCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	conn, err := db.Open(consoleCfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// CreateAdmin inserts a console administrator.
func CreateAdmin(ctx context.Context, cfg config.AppConfig, params CreateAdminParams) (models.Admin, error) {
	consoleCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return models.Admin{}, err
	}
	conn, err := db.Open(consoleCfg.Database.DSN)
	if err != nil {
		return models.Admin{}, err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return models.Admin{}, errMigrate
	}
	return insertAdmin(ctx, conn, params)
}

func insertAdmin(ctx context.Context, conn *gorm.DB, params CreateAdminParams) (models.Admin, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.Admin{}, errors.New("app: username is required")
	}

	known := permissions.DefinitionMap()
	for _, key := range params.Permissions {
		if _, ok := known[key]; !ok {
			return models.Admin{}, fmt.Errorf("app: unknown permission %q", key)
		}
	}
	granted := params.Permissions
	if granted == nil {
		granted = []string{}
	}
	rawPerms, errMarshal := json.Marshal(granted)
	if errMarshal != nil {
		return models.Admin{}, fmt.Errorf("app: encode permissions: %w", errMarshal)
	}

	hash, errHash := security.HashPassword(params.Password)
	if errHash != nil {
		return models.Admin{}, fmt.Errorf("app: hash password: %w", errHash)
	}

	row := models.Admin{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsSuperAdmin: params.SuperAdmin,
		Permissions:  datatypes.JSON(rawPerms),
	}
	if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return models.Admin{}, fmt.Errorf("app: create admin: %w", errCreate)
	}
	return row, nil
}

// RunServer serves the console API until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	consoleCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(consoleCfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(consoleCfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	proxyService, closeCache := buildProxyService(conn, consoleCfg.Redis)
	defer closeCache()

	engine := NewEngine(consoleCfg, conn, proxyService)
	server := &http.Server{
		Addr:              consoleCfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting proxy console on %s with config=%s", consoleCfg.Listen, configPath)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	log.Info("shutting down proxy console")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}

func closeDB(conn *gorm.DB) {
	if errClose := db.Close(conn); errClose != nil {
		log.WithError(errClose).Warn("close database")
	}
}

// NewEngine builds the gin engine serving the console routes.
func NewEngine(cfg config.Config, conn *gorm.DB, proxyService proxy.Service) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogger(), gin.Recovery())
	admin.RegisterAdminRoutes(engine, cfg.API.BasePath, conn, cfg.JWT, proxyService)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

// buildProxyService returns the settings store, cached through Redis when configured.
func buildProxyService(conn *gorm.DB, redisCfg config.RedisConfig) (proxy.Service, func()) {
	store := proxy.NewGormStore(conn)
	if redisCfg.Addr == "" {
		return store, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	log.WithField("addr", redisCfg.Addr).Info("proxy configuration cache enabled")
	return proxy.NewCachedService(store, client, redisCfg.CacheTTL), func() {
		if errClose := client.Close(); errClose != nil {
			log.WithError(errClose).Warn("close redis client")
		}
	}
}
