package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/propshare-labs/distributor/internal/config"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDbConfigFromEnv reads the test database location from the environment,
// falling back to a local postgres instance.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(getEnvOrDefault("TEST_DATABASE_PORT", "5432"))
	if err != nil {
		port = 5432
	}
	return &config.DatabaseConfig{
		Host:     getEnvOrDefault("TEST_DATABASE_HOST", "localhost"),
		Port:     port,
		User:     getEnvOrDefault("TEST_DATABASE_USER", "distributor"),
		Password: getEnvOrDefault("TEST_DATABASE_PASSWORD", ""),
	}
}

func GenerateTestDbName() string {
	return fmt.Sprintf("distributor_test_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
}
