// Package config loads service configuration from the environment.
// A .env file in the working directory is read first for local development;
// real environment variables always win over it.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"convexbot/internal/db"
	"convexbot/internal/shopify"
	"convexbot/internal/theme"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"

	DefaultPort   = "10026"
	DefaultScopes = "read_themes,write_themes"
)

type Config struct {
	// Shopify app credentials
	APIKey      string
	APISecret   string
	RedirectURI string
	Scopes      string
	APIVersion  string
	VerifyHMAC  bool

	// App embed block written into settings_data.json
	BlockID   string
	BlockType string

	Port        string
	HTTPTimeout time.Duration
	LogLevel    string

	ComplianceBackend  string
	ComplianceTable    string
	ComplianceTopicArn string
	RedisURL           string
}

// ParameterGetter is the SSM call used to resolve SHOPIFY_API_SECRET_PARAM.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func Load(ctx context.Context) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}
	return load(ctx, func(ctx context.Context) (ParameterGetter, error) {
		awsCfg, err := db.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		return ssm.NewFromConfig(awsCfg), nil
	})
}

func load(ctx context.Context, newSSM func(context.Context) (ParameterGetter, error)) (*Config, error) {
	cfg := &Config{
		APIKey:      env("SHOPIFY_API_KEY"),
		APISecret:   env("SHOPIFY_API_SECRET"),
		RedirectURI: env("SHOPIFY_REDIRECT_URI"),
		Scopes:      envOrDefault("SHOPIFY_SCOPES", DefaultScopes),
		APIVersion:  envOrDefault("SHOPIFY_API_VERSION", shopify.DefaultAPIVersion),
		VerifyHMAC:  envBool("SHOPIFY_VERIFY_HMAC", true),

		BlockID:   envOrDefault("CHATBOT_BLOCK_ID", theme.DefaultBlockID),
		BlockType: envOrDefault("CHATBOT_BLOCK_TYPE", theme.DefaultBlockType),

		Port:        envOrDefault("PORT", DefaultPort),
		HTTPTimeout: time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:    strings.ToLower(envOrDefault("LOG_LEVEL", "info")),

		ComplianceBackend:  strings.ToLower(envOrDefault("COMPLIANCE_BACKEND", BackendMemory)),
		ComplianceTable:    db.ComplianceTableName(),
		ComplianceTopicArn: env("COMPLIANCE_TOPIC_ARN"),
		RedisURL:           env("REDIS_URL"),
	}

	if param := env("SHOPIFY_API_SECRET_PARAM"); param != "" {
		client, err := newSSM(ctx)
		if err != nil {
			return nil, fmt.Errorf("init ssm client: %w", err)
		}
		secret, err := resolveParameter(ctx, client, param)
		if err != nil {
			return nil, err
		}
		cfg.APISecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveParameter(ctx context.Context, client ParameterGetter, name string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
		return "", fmt.Errorf("ssm parameter %s is empty", name)
	}
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}

func (c *Config) validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "SHOPIFY_API_KEY")
	}
	if c.APISecret == "" {
		missing = append(missing, "SHOPIFY_API_SECRET")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "SHOPIFY_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing env vars: %s", strings.Join(missing, ", "))
	}

	switch c.ComplianceBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.ComplianceTable == "" {
			return errors.New("COMPLIANCE_TABLE required when COMPLIANCE_BACKEND=dynamodb")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL required when COMPLIANCE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown COMPLIANCE_BACKEND %q (memory, dynamodb or redis)", c.ComplianceBackend)
	}

	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// Block is the chatbot block the installer manages.
func (c *Config) Block() theme.Block {
	return theme.Block{ID: c.BlockID, Type: c.BlockType}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOrDefault(key, def string) string {
	if v := env(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(env(key))
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := env(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
