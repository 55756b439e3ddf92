package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeBaseURL    string
	JudgeTimeout    time.Duration
	JudgeQueueName  string
	JudgeRetryDelay time.Duration

	SweepInterval       time.Duration
	GracePeriod         time.Duration
	WarningLimit        int
	LeaderboardCacheTTL time.Duration
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort: getEnv("API_PORT", "8080"),
		JWTKey:  []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:  time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "contest_arena_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JudgeBaseURL:    getEnv("JUDGE_BASE_URL", "http://localhost:2358"),
		JudgeTimeout:    time.Duration(getEnvAsInt("JUDGE_TIMEOUT_MS", 20000)) * time.Millisecond,
		JudgeQueueName:  getEnv("JUDGE_QUEUE_NAME", "judge_jobs_queue"),
		JudgeRetryDelay: time.Duration(getEnvAsInt("JUDGE_RETRY_DELAY_MS", 5000)) * time.Millisecond,

		SweepInterval:       time.Duration(getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		GracePeriod:         time.Duration(getEnvAsInt("GRACE_PERIOD_SECONDS", 30)) * time.Second,
		WarningLimit:        getEnvAsInt("WARNING_LIMIT", 3),
		LeaderboardCacheTTL: time.Duration(getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 15)) * time.Second,
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
