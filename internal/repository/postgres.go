package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type Config struct {
	Host         string        `env:"DB_HOST" envDefault:"localhost"`
	Port         string        `env:"DB_PORT" envDefault:"5432"`
	Username     string        `env:"DB_USERNAME"`
	Password     string        `env:"DB_PASSWORD"`
	DBName       string        `env:"DB_NAME" envDefault:"kadanbot"`
	SSLMode      string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"4"`
	ConnLifetime time.Duration `env:"DB_CONN_LIFETIME" envDefault:"30m"`
}

func NewPostgresDB(ctx context.Context, cfg *Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DBName, cfg.Password, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
