package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"sheetpipe/internal/config"
	"sheetpipe/internal/etl"
	"sheetpipe/internal/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Exporter()
	if err != nil {
		log.Fatalf("load exporter config: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	l := logger.NewLogger(cfg.LogLevel)
	h := etl.NewSheetExport(awsCfg, cfg, l)
	lambda.Start(h.Handle)
}
