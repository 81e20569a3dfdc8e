// Command simserver is a demo HTTP/WS harness around the crowd navigation
// engine: it is a collaborator, not part of the core library (§1, §6).
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crowdnav/internal/config"
	"crowdnav/internal/httpapi"
	"crowdnav/internal/nav/engine"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	cfg := config.FromEnv()
	log.Printf("crowdnav config: grid=%dx%d cell_size=%.2f pool_size=%d profile=%s",
		cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.CellSize, cfg.PoolSize, cfg.Profile)

	e, err := engine.New(cfg, time.Now().UnixNano())
	if err != nil {
		log.Fatalf("engine configuration rejected: %v", err)
	}

	tickRate := getEnvInt("CROWDNAV_TICK_RATE", 60)
	e.Start(tickRate)
	log.Printf("tick loop started at %d ticks/sec", tickRate)

	hub := httpapi.NewHub()
	go hub.Run()
	hub.StartBroadcastLoop(e, 100*time.Millisecond)

	router := httpapi.NewRouter(httpapi.RouterConfig{Engine: e}, hub)

	addr := ":" + getEnvWithDefault("CROWDNAV_PORT", "8080")
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("simserver listening on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	e.Stop()
}

func getEnvWithDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
