package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Limit describes one sliding-window rate limit: at most MaxAttempts inside
// Window, then the client is locked out for Lockout.
type Limit struct {
	Window      time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string

	AdminUsername string
	AdminPassword string

	SessionTTL time.Duration

	// Game defaults, overridable per game at creation.
	MinPlayers int
	MaxPlayers int
	HandSize   int
	WinScore   int

	// Rate limits per action type.
	ProbeLimit      Limit
	CreateLimit     Limit
	JoinLimit       Limit
	AdminLoginLimit Limit
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", "localhost"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "deckparty"),
		DBPassword:  getEnv("DB_PASSWORD", "deckparty123"),
		DBName:      getEnv("DB_NAME", "deckparty"),
		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		SessionTTL: getEnvDuration("SESSION_TTL", 12*time.Hour),

		MinPlayers: getEnvInt("GAME_MIN_PLAYERS", 3),
		MaxPlayers: getEnvInt("GAME_MAX_PLAYERS", 12),
		HandSize:   getEnvInt("GAME_HAND_SIZE", 7),
		WinScore:   getEnvInt("GAME_WIN_SCORE", 5),

		ProbeLimit: Limit{
			Window:      getEnvDuration("PROBE_LIMIT_WINDOW", 5*time.Minute),
			MaxAttempts: getEnvInt("PROBE_LIMIT_MAX", 10),
			Lockout:     getEnvDuration("PROBE_LIMIT_LOCKOUT", 30*time.Minute),
		},
		CreateLimit: Limit{
			Window:      getEnvDuration("CREATE_LIMIT_WINDOW", 1*time.Hour),
			MaxAttempts: getEnvInt("CREATE_LIMIT_MAX", 10),
			Lockout:     getEnvDuration("CREATE_LIMIT_LOCKOUT", 1*time.Hour),
		},
		JoinLimit: Limit{
			Window:      getEnvDuration("JOIN_LIMIT_WINDOW", 5*time.Minute),
			MaxAttempts: getEnvInt("JOIN_LIMIT_MAX", 30),
			Lockout:     getEnvDuration("JOIN_LIMIT_LOCKOUT", 10*time.Minute),
		},
		AdminLoginLimit: Limit{
			Window:      getEnvDuration("ADMIN_LOGIN_LIMIT_WINDOW", 15*time.Minute),
			MaxAttempts: getEnvInt("ADMIN_LOGIN_LIMIT_MAX", 5),
			Lockout:     getEnvDuration("ADMIN_LOGIN_LIMIT_LOCKOUT", 1*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	// TranslateError lets callers detect duplicate-key violations through
	// gorm.ErrDuplicatedKey instead of driver-specific error codes.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
