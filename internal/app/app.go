// Package app wires configuration into a ready handlers.App. Both the Lambda
// and the local server entrypoints build through here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"convexbot/internal/compliance"
	"convexbot/internal/config"
	"convexbot/internal/db"
	"convexbot/internal/handlers"
	"convexbot/internal/shopify"
	"convexbot/internal/theme"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// AWSLoader returns the AWS config; it is only called when some component
// needs an AWS client.
type AWSLoader func(ctx context.Context) (aws.Config, error)

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, loadAWS AWSLoader) (*handlers.App, error) {
	if loadAWS == nil {
		loadAWS = db.LoadAWSConfig
	}

	client := shopify.NewClient(cfg.APIVersion, cfg.HTTPTimeout)
	installer := theme.NewInstaller(client, cfg.Block(), logger)

	var (
		awsCfg    aws.Config
		awsLoaded bool
	)
	awsConfig := func() (aws.Config, error) {
		if awsLoaded {
			return awsCfg, nil
		}
		c, err := loadAWS(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg, awsLoaded = c, true
		return awsCfg, nil
	}

	deps := handlers.Deps{
		Tokens:    client,
		Installer: installer,
		Logger:    logger,
	}

	switch cfg.ComplianceBackend {
	case config.BackendDynamoDB:
		c, err := awsConfig()
		if err != nil {
			return nil, err
		}
		ddb := db.NewDynamoClient(c)
		if deps.Customers, err = compliance.NewDynamoStore(ddb, cfg.ComplianceTable, db.KindCustomer); err != nil {
			return nil, err
		}
		if deps.Shops, err = compliance.NewDynamoStore(ddb, cfg.ComplianceTable, db.KindShop); err != nil {
			return nil, err
		}
	case config.BackendRedis:
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if deps.Customers, err = compliance.NewRedisStore(rdb, db.KindCustomer); err != nil {
			return nil, err
		}
		if deps.Shops, err = compliance.NewRedisStore(rdb, db.KindShop); err != nil {
			return nil, err
		}
	default:
		deps.Customers = compliance.NewMemoryStore(nil)
		deps.Shops = compliance.NewMemoryStore(nil)
	}

	if cfg.ComplianceTopicArn != "" {
		c, err := awsConfig()
		if err != nil {
			return nil, err
		}
		deps.Notifier = compliance.NewSNSNotifier(sns.NewFromConfig(c), cfg.ComplianceTopicArn)
	}

	logger.Info("app configured",
		slog.String("api_version", client.APIVersion),
		slog.String("block_id", cfg.BlockID),
		slog.String("compliance_backend", cfg.ComplianceBackend),
		slog.Bool("compliance_notify", cfg.ComplianceTopicArn != ""),
		slog.Bool("verify_hmac", cfg.VerifyHMAC),
	)
	return handlers.New(cfg, deps), nil
}
