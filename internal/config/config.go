package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds the sync agent settings, read from the environment.
type Config struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	ListenAddr  string
	// LocalAPIKey, when set, must accompany every local API request
	LocalAPIKey string

	DataDir         string
	CartFile        string
	TokenFile       string
	TokenPassphrase string
	DeviceID        string

	// MirrorBackend is "file" (default) or "postgres".
	MirrorBackend string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	CatalogTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] Ignoring .env: %v", err)
	}

	dataDir := getEnv("STOREFRONT_DATA_DIR", defaultDataDir())

	cfg := &Config{
		APIBaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		HTTPTimeout:     getDuration("API_TIMEOUT", 10*time.Second),
		ListenAddr:      getEnv("LISTEN_ADDR", "127.0.0.1:8080"),
		LocalAPIKey:     os.Getenv("LOCAL_API_KEY"),
		DataDir:         dataDir,
		CartFile:        getEnv("CART_FILE", filepath.Join(dataDir, "shoppy_cart.json")),
		TokenFile:       getEnv("TOKEN_FILE", filepath.Join(dataDir, "token")),
		TokenPassphrase: os.Getenv("TOKEN_PASSPHRASE"),
		DeviceID:        os.Getenv("DEVICE_ID"),
		MirrorBackend:   getEnv("CART_MIRROR", "file"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDRESS"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		CatalogTTL:      getDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "storefront-cart"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = loadDeviceID(filepath.Join(dataDir, "device_id"))
	}

	return cfg
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "storefront")
	}
	return ".storefront"
}

// loadDeviceID reads the id generated on first run, creating it if needed.
// The id keys the device's cart mirror, so it must survive restarts.
func loadDeviceID(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Printf("[Config] Failed to create data dir, device id will not persist: %v", err)
		return id
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		log.Printf("[Config] Failed to persist device id: %v", err)
	}
	return id
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go duration strings ("30s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("[Config] Invalid duration for %s: %q, using %s", key, value, defaultValue)
	return defaultValue
}
