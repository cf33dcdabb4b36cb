package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Mail     MailConfig
	Booking  BookingConfig
	Stats    StatsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret string
}

type MailConfig struct {
	SendGridAPIKey string
	From           string
}

type BookingConfig struct {
	CancelCutoff time.Duration
	Location     *time.Location
}

type StatsConfig struct {
	Interval time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	mailFrom := os.Getenv("MAIL_FROM")
	if mailFrom == "" {
		mailFrom = "noreply@seatbook.example.com"
	}

	mailCfg := MailConfig{
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		From:           mailFrom,
	}

	cancelCutoffHoursStr := os.Getenv("CANCEL_CUTOFF_HOURS")
	if cancelCutoffHoursStr == "" {
		cancelCutoffHoursStr = "24"
	}

	cancelCutoffHours, err := strconv.Atoi(cancelCutoffHoursStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid CANCEL_CUTOFF_HOURS: %w", op, err)
	}

	// Business timezone; all slot identity derives from it.
	location := time.Local
	if tz := os.Getenv("BUSINESS_TZ"); tz != "" {
		location, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid BUSINESS_TZ: %w", op, err)
		}
	}

	statsIntervalStr := os.Getenv("STATS_INTERVAL")
	if statsIntervalStr == "" {
		statsIntervalStr = "1h"
	}

	statsInterval, err := time.ParseDuration(statsIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid STATS_INTERVAL: %w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Auth:     AuthConfig{JWTSecret: jwtSecret},
		Mail:     mailCfg,
		Booking: BookingConfig{
			CancelCutoff: time.Duration(cancelCutoffHours) * time.Hour,
			Location:     location,
		},
		Stats:    StatsConfig{Interval: statsInterval},
	}, nil
}
