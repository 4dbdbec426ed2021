package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/tyler180/nba-stats-backends/internal/config"
	"github.com/tyler180/nba-stats-backends/internal/logger"
	"github.com/tyler180/nba-stats-backends/tools/nba-pull/internal/app/pull"
)

func inLambda() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("_LAMBDA_SERVER_PORT") != ""
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	if inLambda() {
		// only /tmp is writable inside the runtime
		if _, set := os.LookupEnv("OUTPUT_DIR"); !set {
			cfg.OutputDir = "/tmp/data"
		}
		svc, err := pull.New(context.Background(), cfg, log)
		if err != nil {
			log.WithError(err).Fatal("init")
		}
		lambda.Start(svc.Handle)
		return
	}

	var (
		seasonFlag = flag.String("season", "", "season label, e.g. 2024-25 (default: resolved from today)")
		typeFlag   = flag.String("season-type", "", "season type (default: $SEASON_TYPE)")
		sourceFlag = flag.String("source", "", "nba or bref (default: $SOURCE)")
		outFlag    = flag.String("out", "", "output directory (default: $OUTPUT_DIR)")
		parquetOn  = flag.Bool("parquet", false, "also write the parquet pair")
	)
	flag.Parse()

	o := config.Overrides{
		Season:     *seasonFlag,
		SeasonType: *typeFlag,
		Source:     *sourceFlag,
		OutputDir:  *outFlag,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "parquet" {
			o.WriteParquet = parquetOn
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := pull.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("init")
		os.Exit(1)
	}
	if _, err := svc.Run(ctx, o); err != nil {
		fmt.Fprintln(os.Stderr, "nba-pull:", err)
		stop()
		os.Exit(1)
	}
}
