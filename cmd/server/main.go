// Worldforge game server - HTTP/websocket API and world simulation.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/worldforge/server/pkg/action"
	"github.com/worldforge/server/pkg/api"
	"github.com/worldforge/server/pkg/auth"
	"github.com/worldforge/server/pkg/biome"
	"github.com/worldforge/server/pkg/combat"
	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/hub"
	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/monster"
	"github.com/worldforge/server/pkg/objectstorage"
	"github.com/worldforge/server/pkg/quest"
	"github.com/worldforge/server/pkg/store"
	"github.com/worldforge/server/pkg/transient"
	"github.com/worldforge/server/pkg/world"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx := context.Background()

	durableCfg, err := config.LoadDurableConfigFromEnv()
	if err != nil {
		log.Fatalf("durable config: %v", err)
	}
	transientCfg, err := config.LoadTransientConfigFromEnv()
	if err != nil {
		log.Fatalf("transient config: %v", err)
	}
	llmCfg, err := config.LoadLLMConfigFromEnv()
	if err != nil {
		log.Fatalf("llm config: %v", err)
	}
	objectCfg, err := config.LoadObjectStorageConfigFromEnv()
	if err != nil {
		log.Fatalf("object storage config: %v", err)
	}
	authCfg, err := config.LoadAuthConfigFromEnv()
	if err != nil {
		log.Fatalf("auth config: %v", err)
	}
	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("server config: %v", err)
	}
	rateLimitCfg, err := config.LoadRateLimitConfigFromEnv()
	if err != nil {
		log.Fatalf("rate limit config: %v", err)
	}
	worldCfg, err := config.LoadWorldConfigFromEnv()
	if err != nil {
		log.Fatalf("world config: %v", err)
	}

	durableClient, err := durable.NewClient(ctx, durableCfg)
	if err != nil {
		log.Fatalf("connect durable store: %v", err)
	}
	defer func() {
		if err := durableClient.Close(); err != nil {
			log.Printf("error closing durable store: %v", err)
		}
	}()
	slog.Info("connected to durable store")

	transientStore, err := transient.New(transientCfg)
	if err != nil {
		log.Fatalf("connect transient store: %v", err)
	}
	slog.Info("connected to transient store")

	objectStore, err := objectstorage.New(ctx, objectCfg)
	if err != nil {
		log.Fatalf("connect object storage: %v", err)
	}

	llmGateway := llmgateway.New(llmCfg)
	storeFacade := store.New(durableClient, transientStore)

	biomeManager := biome.New(durableClient, llmGateway, rand.New(rand.NewSource(time.Now().UnixNano())))
	monsterRegistry := monster.New(durableClient)
	questManager := quest.New(durableClient)

	// combat.Engine needs a Broadcaster and hub.New needs a *combat.Engine,
	// so the hub is wired in after construction via SetHub.
	combatEngine := combat.New(storeFacade, llmGateway, nil, monsterRegistry)
	connectionHub := hub.New(storeFacade, monsterRegistry, combatEngine, questManager)
	combatEngine.SetHub(connectionHub)

	worldEngine := world.New(storeFacade, biomeManager, llmGateway, objectStore, connectionHub, worldCfg)

	pipeline := action.New(storeFacade, llmGateway, worldEngine, monsterRegistry, combatEngine, questManager, connectionHub, rateLimitCfg)

	verifier := auth.NewVerifier(authCfg)

	server := api.New(storeFacade, worldEngine, pipeline, combatEngine, questManager, monsterRegistry, connectionHub, verifier, authCfg, serverCfg)

	addr := net.JoinHostPort(serverCfg.Host, strconv.Itoa(serverCfg.Port))

	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

