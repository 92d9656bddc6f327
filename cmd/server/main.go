package main

import (
	"context"
	"log"

	"github.com/oneceylon/oneceylon/internal/bootstrap"
	"github.com/oneceylon/oneceylon/internal/config"
	"github.com/oneceylon/oneceylon/internal/server"
	"github.com/oneceylon/oneceylon/pkg/database"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect()
	if err := bootstrap.Migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if err := bootstrap.SeedAll(db); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	redisClient := connectRedis(cfg.RedisURL)

	srv := server.NewServer(cfg, db, redisClient)
	defer srv.Stop()

	log.Printf("Starting server on port %s", cfg.Port)
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

// connectRedis returns nil when Redis is not configured or unreachable; live
// notification delivery degrades gracefully without it.
func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Println("REDIS_URL not set, running without live notifications")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Invalid REDIS_URL, running without live notifications: %v", err)
		return nil
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis unreachable, running without live notifications: %v", err)
		return nil
	}

	return client
}
