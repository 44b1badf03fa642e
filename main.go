package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Manimaran10/task-manager/api"
	"github.com/Manimaran10/task-manager/realtime"
	"github.com/Manimaran10/task-manager/storage"
	"github.com/Manimaran10/task-manager/tasks"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal("missing mongo config")
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "taskmanager"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := storage.New(ctx, mongoURI, dbName)
	cancel()
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		redisOpts = &redis.Options{Addr: redisConn}
	}
	rc := redis.NewClient(redisOpts)
	cacheTTL := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	repo := storage.NewCache(store, rc, cacheTTL)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing JWT_SECRET")
	}
	tokenTTL := 24 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid TOKEN_TTL: %v", err)
		}
		tokenTTL = d
	}
	auth := api.NewAuth([]byte(secret), tokenTTL)

	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry)
	svc := tasks.NewService(repo, broadcaster)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, auth, store, svc, store)
	e.GET("/ws", realtime.Handler(auth, registry))

	listenAddr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		listenAddr = ":" + v
	}
	e.Logger.Fatal(e.Start(listenAddr))
}
