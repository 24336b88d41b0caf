package utils

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv loads the .env file for the given environment.
// Lookup order: .env.<env> first, then plain .env. Missing files are reported
// to the caller so startup can log and continue with process env only.
func LoadEnv(env string) error {
	if env != "" {
		if err := godotenv.Load(".env." + env); err == nil {
			return nil
		}
	}
	return godotenv.Load()
}

// GetEnv returns the raw environment variable value.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetIntEnv returns the environment variable as int64, 0 when unset or invalid.
func GetIntEnv(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}

// GetBoolEnv returns the environment variable as bool, false when unset or invalid.
func GetBoolEnv(key string) bool {
	return cast.ToBool(os.Getenv(key))
}

// GetFloatEnv returns the environment variable as float64, 0 when unset or invalid.
func GetFloatEnv(key string) float64 {
	return cast.ToFloat64(os.Getenv(key))
}

// RandText generates a random alphanumeric string of the given length.
func RandText(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand should never fail; fall back to a fixed marker rather than panic
		return fmt.Sprintf("%0*d", length, 0)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
