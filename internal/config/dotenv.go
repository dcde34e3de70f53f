package config

import "github.com/joho/godotenv"

// LoadDotEnv reads .env files into the environment.
// It does NOT override existing env vars (env takes precedence).
// A missing file returns an error the caller may ignore.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}
