package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type API struct {
	Addr string
	// CORSOrigins is the list of allowed browser origins.
	CORSOrigins []string
}

type Node struct {
	// AdminAddress is the single identity allowed to administer tokens.
	AdminAddress string
	DBPath       string
	LogFile      string
}

type Config struct {
	API  API
	Node Node
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Node: Node{
			AdminAddress: "0x0000000000000000000000000000000000000001",
			DBPath:       "data/obdex",
			LogFile:      "data/obdex.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.Node.AdminAddress = getEnv("ADMIN_ADDRESS", cfg.Node.AdminAddress)
	cfg.Node.DBPath = getEnv("DB_PATH", cfg.Node.DBPath)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = strings.Split(origins, ",")
	}

	return cfg
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
