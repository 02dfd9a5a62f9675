package main

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"go-medsearch-proxy/internal/config"
	"go-medsearch-proxy/internal/models"
)

const (
	defaultConfigPath   = "/app/proxy_config.yaml"
	defaultRedisURL     = "redis://redis:6379"
	defaultRedisURLFile = "/app/.redis-url"
)

// GetRedisURL returns the Redis URL with the following priority:
// 1. REDIS_URL environment variable
// 2. REDIS_URL_FILE file content
// 3. Default value
func GetRedisURL(logger *zap.Logger) string {
	// Priority 1: Environment variable
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		logger.Debug("Using Redis URL from environment variable")
		return redisURL
	}

	// Priority 2: Configurable connection file path
	connectionFile := os.Getenv("REDIS_URL_FILE")
	if connectionFile == "" {
		connectionFile = defaultRedisURLFile
	}

	if redisURL := readSecretFile(connectionFile); redisURL != "" {
		logger.Debug("Using Redis URL from connection file", zap.String("file", connectionFile))
		return redisURL
	}
	logger.Debug("Redis connection file not found or empty", zap.String("file", connectionFile))

	// Priority 3: Default
	logger.Debug("Using default Redis URL")
	return defaultRedisURL
}

// ResolveSecret reads a credential from the named environment variable,
// falling back to the file named by <name>_FILE. It returns "" when neither
// is set.
func ResolveSecret(name string) string {
	if name == "" {
		return ""
	}
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	if file := os.Getenv(name + "_FILE"); file != "" {
		return readSecretFile(file)
	}
	return ""
}

// BuildTargets resolves the credentials of configured targets. Targets whose
// credential is missing are skipped so the remaining ones keep their order.
func BuildTargets(endpoint string, cfgs []config.TargetConfig, logger *zap.Logger) []models.Target {
	targets := make([]models.Target, 0, len(cfgs))
	for _, c := range cfgs {
		target := models.Target{
			Name:     c.Name,
			BaseURL:  strings.TrimRight(c.BaseURL, "/"),
			AuthType: c.AuthType,
			AuthName: c.AuthName,
			VoiceID:  c.VoiceID,
		}

		if c.AuthType != models.NoAuth {
			target.Credential = ResolveSecret(c.CredentialEnv)
			if target.Credential == "" {
				logger.Warn("Skipping target without credential",
					zap.String("endpoint", endpoint),
					zap.String("target", c.Name),
					zap.String("credential_env", c.CredentialEnv))
				continue
			}
		}

		targets = append(targets, target)
	}
	return targets
}

func readSecretFile(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}
