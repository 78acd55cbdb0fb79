package main

import (
	"context"
	"log"
	"os"

	"convexbot/internal/app"
	"convexbot/internal/config"
	"convexbot/internal/logger"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	l := logger.New(os.Stdout, cfg.LogLevel)

	a, err := app.Build(ctx, cfg, l, nil)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	lambda.Start(a.Handle)
}
