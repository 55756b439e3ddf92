package queue

import (
	"context"

	"contest_arena/internal/platform/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var RDB *redis.Client

func ConnectRedis() {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx := context.Background()
	if _, err := RDB.Ping(ctx).Result(); err != nil {
		log.Fatal().Err(err).Msg("could not connect to Redis")
	}
	log.Info().Msg("connected to Redis")
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		log.Info().Msg("Redis connection closed")
	}
}
