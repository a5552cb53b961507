package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv returns the configured value for key, preferring the loaded .env
// file over the process environment. Containerized deployments typically set
// plain environment variables and carry no .env file at all.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the project .env file. Binaries run either from the
// project root or from their cmd/<name> directory.
func SetupEnvFile() {
	for _, envFile := range []string{".env", "../../.env"} {
		if env, err := godotenv.Read(envFile); err == nil {
			Env = env
			return
		}
	}

	panic("No .env file found in any of the expected locations")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
