package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage driver names accepted by RITUAL_STORAGE_DRIVER. The memory driver
// keeps everything in process and loses it on restart; it exists for local
// development and demos.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures configuration values for the ritual engine service.
type Config struct {
	HTTPPort      int
	StorageDriver string
	SQLiteDSN     string
	SessionSecret string
	SessionTTL    time.Duration
	OffDay        time.Weekday
	Timezone      *time.Location
}

// fileConfig mirrors the optional YAML configuration file. Environment
// variables override anything set here.
type fileConfig struct {
	HTTPPort      int    `yaml:"http_port"`
	StorageDriver string `yaml:"storage_driver"`
	SQLiteDSN     string `yaml:"sqlite_dsn"`
	SessionSecret string `yaml:"session_secret"`
	SessionTTL    string `yaml:"session_ttl"`
	OffDay        string `yaml:"off_day"`
	Timezone      string `yaml:"timezone"`
}

// Load resolves configuration from an optional YAML file named by
// RITUAL_CONFIG_FILE, then from the process environment. Environment values
// win over file values, and defaults fill whatever remains.
//
// The loader validates required values and reports localized error messages
// for missing or malformed entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		StorageDriver: StorageSQLite,
		SQLiteDSN:     "file:rituals.db?_foreign_keys=on",
		SessionTTL:    24 * time.Hour,
		OffDay:        time.Sunday,
		Timezone:      time.UTC,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if path := strings.TrimSpace(os.Getenv("RITUAL_CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if portValue := strings.TrimSpace(os.Getenv("RITUAL_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "RITUAL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driverValue := strings.TrimSpace(os.Getenv("RITUAL_STORAGE_DRIVER")); driverValue != "" {
		driver, err := parseStorageDriver(driverValue)
		if err != nil {
			invalid = append(invalid, "RITUAL_STORAGE_DRIVER")
		} else {
			cfg.StorageDriver = driver
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("RITUAL_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("RITUAL_SESSION_SECRET")); secret != "" {
		cfg.SessionSecret = secret
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "RITUAL_SESSION_SECRET")
	}

	if ttlValue := strings.TrimSpace(os.Getenv("RITUAL_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "RITUAL_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if offDayValue := strings.TrimSpace(os.Getenv("RITUAL_OFF_DAY")); offDayValue != "" {
		offDay, err := parseWeekday(offDayValue)
		if err != nil {
			invalid = append(invalid, "RITUAL_OFF_DAY")
		} else {
			cfg.OffDay = offDay
		}
	}

	if tzValue := strings.TrimSpace(os.Getenv("RITUAL_TIMEZONE")); tzValue != "" {
		location, err := time.LoadLocation(tzValue)
		if err != nil {
			invalid = append(invalid, "RITUAL_TIMEZONE")
		} else {
			cfg.Timezone = location
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("設定ファイルの形式が不正です: %s: %w", path, err)
	}

	if file.HTTPPort > 0 {
		cfg.HTTPPort = file.HTTPPort
	}
	if driverValue := strings.TrimSpace(file.StorageDriver); driverValue != "" {
		driver, err := parseStorageDriver(driverValue)
		if err != nil {
			return fmt.Errorf("設定ファイルの値が不正です: storage_driver")
		}
		cfg.StorageDriver = driver
	}
	if dsn := strings.TrimSpace(file.SQLiteDSN); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if secret := strings.TrimSpace(file.SessionSecret); secret != "" {
		cfg.SessionSecret = secret
	}
	if ttlValue := strings.TrimSpace(file.SessionTTL); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("設定ファイルの値が不正です: session_ttl")
		}
		cfg.SessionTTL = ttl
	}
	if offDayValue := strings.TrimSpace(file.OffDay); offDayValue != "" {
		offDay, err := parseWeekday(offDayValue)
		if err != nil {
			return fmt.Errorf("設定ファイルの値が不正です: off_day")
		}
		cfg.OffDay = offDay
	}
	if tzValue := strings.TrimSpace(file.Timezone); tzValue != "" {
		location, err := time.LoadLocation(tzValue)
		if err != nil {
			return fmt.Errorf("設定ファイルの値が不正です: timezone")
		}
		cfg.Timezone = location
	}

	return nil
}

func parseStorageDriver(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case StorageSQLite:
		return StorageSQLite, nil
	case StorageMemory:
		return StorageMemory, nil
	}
	return "", fmt.Errorf("unknown storage driver %q", value)
}

func parseWeekday(value string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", value)
}
