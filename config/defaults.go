package config

import "time"

// DefaultConfig returns the configuration the service boots with when no
// file or environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Storage:   DefaultStorageConfig(),
		Review:    DefaultReviewConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultStorageConfig returns the default storage configuration: file
// backend under ./data.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend: "file",
		FileDir: "data/workflows",
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "reviewflow",
			Name:            "reviewflow",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "reviewflow",
			Collection: "workflows",
		},
	}
}

// DefaultReviewConfig returns the default engine tuning: auto-approval off,
// three conflict retries.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		AutoApprove:    false,
		MaxSaveRetries: 3,
	}
}

// DefaultAuthConfig returns the default auth configuration: no JWT.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		JWTEnabled: false,
		JWTIssuer:  "reviewflow",
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration:
// disabled, pointing at a local collector.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "reviewflow",
		SampleRate:   0.1,
	}
}
