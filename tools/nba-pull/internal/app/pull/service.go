package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/tyler180/nba-stats-backends/internal/config"
	"github.com/tyler180/nba-stats-backends/internal/logger"
	"github.com/tyler180/nba-stats-backends/internal/nba"
	"github.com/tyler180/nba-stats-backends/internal/season"
	"github.com/tyler180/nba-stats-backends/internal/snapshot"
	"github.com/tyler180/nba-stats-backends/internal/store"
)

const toolName = "nba-pull"

// Service runs the season -> fetch -> project -> write pipeline. One Service
// lives for the whole process so the provider breaker survives warm starts.
type Service struct {
	Config  *config.Config
	Fetcher Fetcher
	Mirror  Mirror // nil disables the S3 copy
	Log     *logrus.Logger
	Now     func() time.Time
}

// New wires the production collaborators from cfg.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Service, error) {
	svc := &Service{
		Config:  cfg,
		Fetcher: nba.NewClient(cfg.Client(), log.WithField("component", "nba_client")),
		Log:     log,
		Now:     time.Now,
	}
	if cfg.OutputBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		svc.Mirror = &store.Uploader{
			Client: s3.NewFromConfig(awsCfg),
			Bucket: cfg.OutputBucket,
			Prefix: cfg.OutputPrefix,
		}
	}
	return svc, nil
}

// Handle is the Lambda handler.
func (s *Service) Handle(ctx context.Context, raw Raw) (*Result, error) {
	var e Event
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
	}
	return s.Run(ctx, config.Overrides{
		Season:       e.Season,
		SeasonType:   e.SeasonType,
		Source:       e.Source,
		OutputDir:    e.OutputDir,
		WriteParquet: e.WriteParquet,
	})
}

// Run performs one pull. On a write failure the returned Result still carries
// the paths that were attempted.
func (s *Service) Run(ctx context.Context, o config.Overrides) (*Result, error) {
	cfg, err := s.Config.With(o)
	if err != nil {
		return nil, err
	}
	log := logger.WithRun(s.Log, toolName)
	res := &Result{RunID: log.Data["run_id"].(string), Source: cfg.Source}

	loc, err := season.LoadZone(cfg.Timezone)
	if err != nil {
		return res, err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	now = now.In(loc)

	label := cfg.Season
	if label == "" {
		label = season.Resolve(now, loc, time.Month(cfg.SeasonStartMonth))
	}
	res.Season = label
	log = log.WithField("season", label)
	log.WithFields(logrus.Fields{
		"source":      cfg.Source,
		"season_type": cfg.SeasonType,
	}).Info("fetching player per-game averages")

	raw, err := s.fetch(ctx, cfg, label)
	if err != nil {
		log.WithError(err).Error("fetch failed")
		return res, err
	}

	tbl, err := snapshot.Project(raw, snapshot.Options{
		Columns:           cfg.Columns,
		IncludeTimestamp:  cfg.IncludeTimestamp,
		IncludeSeason:     cfg.IncludeSeason,
		IncludeEfficiency: cfg.IncludeEfficiency,
		Strict:            cfg.StrictSchema,
		AsOf:              now,
		Season:            label,
	})
	if err != nil {
		log.WithError(err).Error("projection failed")
		return res, err
	}
	if !hasDataColumns(tbl) && len(cfg.Columns) > 0 {
		log.WithField("response_columns", len(raw.Columns)).Warn("no whitelisted columns in response; writing metadata only")
	}
	res.Rows = tbl.Len()

	w := store.NewWriter(cfg.OutputDir)
	res.CSV, err = w.WriteCSV(tbl, label, now)
	if err != nil {
		log.WithError(err).Error("csv write failed")
		return res, err
	}
	log.WithField("path", res.CSV.Dated).Info("wrote dated snapshot")
	log.WithField("path", res.CSV.Latest).Info("wrote latest snapshot")

	pairs := []store.Paths{res.CSV}
	if cfg.WriteParquet {
		pq, err := w.WriteParquet(snapshot.Rows(tbl), label, now)
		res.Parquet = &pq
		if err != nil {
			log.WithError(err).Error("parquet write failed")
			return res, err
		}
		log.WithFields(logrus.Fields{"dated": pq.Dated, "latest": pq.Latest}).Info("wrote parquet snapshot")
		pairs = append(pairs, pq)
	}

	if s.Mirror != nil {
		for _, p := range pairs {
			keys, err := s.Mirror.Mirror(ctx, label, p)
			res.S3Keys = append(res.S3Keys, keys...)
			for _, k := range keys {
				log.WithField("key", k).Info("uploaded")
			}
			if err != nil {
				log.WithError(err).Error("upload failed")
				return res, fmt.Errorf("mirror: %w", err)
			}
		}
	}

	log.WithField("rows", res.Rows).Info("pull complete")
	return res, nil
}

func (s *Service) fetch(ctx context.Context, cfg *config.Config, label string) (*nba.Table, error) {
	switch cfg.Source {
	case config.SourceBref:
		return s.Fetcher.FetchBrefPerGame(ctx, label, cfg.SeasonType)
	default:
		return s.Fetcher.FetchPlayerAverages(ctx, label, cfg.SeasonType)
	}
}

func hasDataColumns(t *nba.Table) bool {
	for _, c := range t.Columns {
		switch c {
		case snapshot.ColAsOf, snapshot.ColSeason, snapshot.ColEfficiency:
		default:
			return true
		}
	}
	return false
}
