package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	SecretKey      string
	LoginUser      string
	LoginPass      string
	UploadDir      string
	OutputDir      string
	Workers        int
	LogLevel       string
	LogPretty      bool
	SourceSheet    string
	ReferenceSheet string
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load config: %w", err)
	}

	workers, err := getInt("WORKERS", 0)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pretty, err := getBool("LOG_PRETTY", false)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := &Config{
		Port:           Get("PORT", "9595"),
		SecretKey:      os.Getenv("SECRET_KEY"),
		LoginUser:      Get("LOGIN_USER", "user"),
		LoginPass:      os.Getenv("LOGIN_PASS"),
		UploadDir:      Get("UPLOAD_DIR", "uploads"),
		OutputDir:      Get("OUTPUT_DIR", "output"),
		Workers:        workers,
		LogLevel:       Get("LOG_LEVEL", "info"),
		LogPretty:      pretty,
		SourceSheet:    Get("SOURCE_SHEET", "Source"),
		ReferenceSheet: Get("REFERENCE_SHEET", "Reference"),
	}
	return cfg, nil
}

// ValidateServer checks the settings the web front end cannot run without.
func (c *Config) ValidateServer() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("SECRET_KEY is required")
	}
	if len(c.SecretKey) < 32 {
		return errors.New("SECRET_KEY must be at least 32 bytes")
	}
	if strings.TrimSpace(c.LoginPass) == "" {
		return errors.New("LOGIN_PASS is required")
	}
	return nil
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
