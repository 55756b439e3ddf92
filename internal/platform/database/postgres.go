package database

import (
	"database/sql"
	"time"

	"contest_arena/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening database")
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err = DB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}

	log.Info().Msg("connected to PostgreSQL")
}

func Close() {
	if DB != nil {
		DB.Close()
		log.Info().Msg("database connection closed")
	}
}
