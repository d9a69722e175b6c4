package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DataDir         string
	ContractsFile   string
	NotesFile       string
	TradeNotesFile  string
	TradeColorsFile string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	Port       string
	LogLevel   string
	LogFormat  string
	FlipPolicy string
	DayWorkers int
}

// Load reads an optional .env file and then the environment. Variables already
// set in the environment win over the .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using environment variables")
	}

	workers := 4
	if v := os.Getenv("DAY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		} else {
			log.Warn().Str("DAY_WORKERS", v).Msg("Invalid DAY_WORKERS, using default")
		}
	}

	return &Config{
		DataDir:         getEnv("DATA_DIR", "trading_data"),
		ContractsFile:   getEnv("CONTRACTS_FILE", "contracts.json"),
		NotesFile:       getEnv("NOTES_FILE", "trading_notes.json"),
		TradeNotesFile:  getEnv("TRADE_NOTES_FILE", "trade_notes.json"),
		TradeColorsFile: getEnv("TRADE_COLORS_FILE", "trade_colors.json"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "tradejournal"),

		Port:       getEnv("PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),
		FlipPolicy: getEnv("FLIP_POLICY", "absorb"),
		DayWorkers: workers,
	}
}

// DSN is the postgres connection string for gorm.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
