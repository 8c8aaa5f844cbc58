package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the GORM/pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// KafkaConfig holds Kafka broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// ProvidersConfig holds base URLs for the external services the engine consumes.
type ProvidersConfig struct {
	CatalogURL   string
	NominatimURL string
	OSRMURL      string
	MatchingURL  string
	UserAgent    string
}

// ResolverConfig holds tunables for selection resolution.
type ResolverConfig struct {
	SnapMaxKm      float64
	Debounce       time.Duration
	CatalogRefresh time.Duration
}

// ServiceConfig holds all configuration for the rides service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    DatabaseConfig
	KafkaConfig KafkaConfig
	Providers   ProvidersConfig
	Resolver    ResolverConfig
}

// Load reads configuration from RIDES_-prefixed environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("RIDES")
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "rides")
	v.SetDefault("DB_PASSWORD", "rides")
	v.SetDefault("DB_NAME", "rides")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "transport-")

	v.SetDefault("CATALOG_URL", "http://localhost:9000/api/grafo/nodos")
	v.SetDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("OSRM_URL", "https://router.project-osrm.org")
	v.SetDefault("MATCHING_URL", "http://localhost:9000")
	v.SetDefault("USER_AGENT", "transport-service-rides/1.0")

	v.SetDefault("SNAP_MAX_KM", 20.0)
	v.SetDefault("DEBOUNCE_MS", 350)
	v.SetDefault("CATALOG_REFRESH_MIN", 15)

	port := v.GetString("SERVICE_PORT")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:   port,
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		Providers: ProvidersConfig{
			CatalogURL:   v.GetString("CATALOG_URL"),
			NominatimURL: v.GetString("NOMINATIM_URL"),
			OSRMURL:      v.GetString("OSRM_URL"),
			MatchingURL:  v.GetString("MATCHING_URL"),
			UserAgent:    v.GetString("USER_AGENT"),
		},
		Resolver: ResolverConfig{
			SnapMaxKm:      v.GetFloat64("SNAP_MAX_KM"),
			Debounce:       time.Duration(v.GetInt("DEBOUNCE_MS")) * time.Millisecond,
			CatalogRefresh: time.Duration(v.GetInt("CATALOG_REFRESH_MIN")) * time.Minute,
		},
	}, nil
}
