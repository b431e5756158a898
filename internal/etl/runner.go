package etl

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"ordersetl/internal/columnar"
	"ordersetl/internal/config"
	"ordersetl/internal/datasource"
	"ordersetl/internal/datasource/file"
	"ordersetl/internal/datasource/httpds"
	"ordersetl/internal/metrics"
	"ordersetl/internal/parser/csv"
	"ordersetl/internal/runmeta"
	"ordersetl/internal/storage"
	"ordersetl/internal/table"
)

// Artifact keys used in the metadata document.
const (
	keyOrdersRaw   = "orders_raw"
	keyUsersRaw    = "users_raw"
	keyOrdersClean = "orders_clean"
	keyUsers       = "users"
	keyAnalytics   = "analytics_table"
	keyRunMeta     = "run_meta"
)

// Runner executes one pipeline run against the files named by Config.
type Runner struct {
	Config config.Config
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run reads the inputs, transforms them and writes every artifact. The
// three tables are staged next to their final paths and only renamed into
// place once all of them, and the optional SQL export, succeeded. The
// metadata document is written last. A failed run leaves previous outputs
// untouched.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	cfg := r.Config.Resolved()
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	log = log.With(zap.String("job", cfg.Job))

	started := now()
	defer func() {
		metrics.RecordRun(cfg.Job, err)
		if ferr := metrics.Flush(); ferr != nil {
			log.Warn("metrics flush failed", zap.Error(ferr))
		}
	}()

	log.Info("loading inputs")
	var ordersRaw, usersRaw *table.Table
	err = r.step(cfg.Job, "load", func() error {
		var err error
		if ordersRaw, err = readCSV(ctx, cfg.Inputs.Orders); err != nil {
			return err
		}
		usersRaw, err = readCSV(ctx, cfg.Inputs.Users)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	log.Info("inputs loaded",
		zap.Int(keyOrdersRaw, ordersRaw.Len()),
		zap.Int(keyUsersRaw, usersRaw.Len()))
	metrics.RecordRow(cfg.Job, keyOrdersRaw, int64(ordersRaw.Len()))
	metrics.RecordRow(cfg.Job, keyUsersRaw, int64(usersRaw.Len()))

	log.Info("transforming")
	opt := Options{
		StatusMap:   cfg.Transform.StatusMap,
		WinsorLower: cfg.Transform.WinsorLower,
		WinsorUpper: cfg.Transform.WinsorUpper,
		JoinSuffix:  cfg.Transform.JoinSuffix,
		MatchColumn: cfg.Transform.MatchColumn,
		Observe: func(step string, err error, d time.Duration) {
			metrics.RecordStep(cfg.Job, step, err, d)
			log.Debug("step finished", zap.String("step", step), zap.Duration("took", d), zap.Error(err))
		},
	}
	res, err = Transform(ordersRaw, usersRaw, opt)
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}
	log.Info("transformed",
		zap.Int("analytics", res.Analytics.Len()),
		zap.Int("unparseable_created_at", res.Stats.UnparseableCreatedAt),
		zap.Int("orders_outliers", res.Stats.OrdersOutliers),
		zap.String("join_match_rate", runmeta.FormatRate(res.Stats.JoinMatchRate)))
	metrics.RecordRow(cfg.Job, "analytics", int64(res.Analytics.Len()))
	metrics.RecordRow(cfg.Job, "outliers", int64(res.Stats.OrdersOutliers))
	metrics.RecordRow(cfg.Job, "unparseable_created_at", int64(res.Stats.UnparseableCreatedAt))
	if res.Stats.JoinMatchRate != nil {
		metrics.RecordMatchRate(cfg.Job, res.Stats.JoinMatchColumn, *res.Stats.JoinMatchRate)
	}

	log.Info("writing outputs")
	outputs := []struct {
		key, path string
		t         *table.Table
	}{
		{keyOrdersClean, cfg.Outputs.OrdersClean, res.OrdersClean},
		{keyUsers, cfg.Outputs.Users, res.Users},
		{keyAnalytics, cfg.Outputs.Analytics, res.Analytics},
	}
	staged := make([]*columnar.Staged, 0, len(outputs))
	defer func() {
		for _, s := range staged {
			s.Discard()
		}
	}()
	err = r.step(cfg.Job, "stage", func() error {
		for _, o := range outputs {
			s, err := columnar.Stage(o.path, o.t)
			if err != nil {
				return fmt.Errorf("write %s: %w", o.key, err)
			}
			staged = append(staged, s)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if cfg.Storage.Kind != "" {
		if err = r.step(cfg.Job, "export", func() error { return r.export(ctx, cfg, log, res.Analytics) }); err != nil {
			return Result{}, err
		}
	}

	artifacts := make(map[string]runmeta.Artifact, len(outputs))
	for i, s := range staged {
		if err = s.Commit(); err != nil {
			return Result{}, fmt.Errorf("commit %s: %w", outputs[i].key, err)
		}
		sum, err := runmeta.Checksum(s.Path)
		if err != nil {
			return Result{}, fmt.Errorf("checksum %s: %w", outputs[i].key, err)
		}
		artifacts[outputs[i].key] = runmeta.Artifact{Rows: s.Rows, Bytes: s.Bytes, XXH3: sum}
		log.Info("wrote artifact",
			zap.String("artifact", outputs[i].key),
			zap.String("path", s.Path),
			zap.Int("rows", s.Rows),
			zap.String("size", humanize.Bytes(uint64(s.Bytes))))
	}
	staged = nil

	log.Info("writing run metadata")
	doc := runmeta.Document{
		RunID:      runmeta.NewRunID(),
		StartedAt:  started.UTC(),
		FinishedAt: now().UTC(),
		Stats:      res.Stats,
		Inputs: map[string]string{
			keyOrdersRaw: cfg.Inputs.Orders,
			keyUsersRaw:  cfg.Inputs.Users,
		},
		Outputs: map[string]string{
			keyOrdersClean: cfg.Outputs.OrdersClean,
			keyUsers:       cfg.Outputs.Users,
			keyAnalytics:   cfg.Outputs.Analytics,
			keyRunMeta:     cfg.Outputs.RunMeta,
		},
		Artifacts: artifacts,
		Config:    configSnapshot(cfg),
	}
	if err = runmeta.Write(cfg.Outputs.RunMeta, doc); err != nil {
		return Result{}, err
	}

	log.Info("done",
		zap.String("run_id", doc.RunID),
		zap.String("outputs", filepath.Dir(cfg.Outputs.Analytics)),
		zap.Duration("took", doc.FinishedAt.Sub(doc.StartedAt)))
	return res, nil
}

// step times fn and records it as a pipeline step.
func (r *Runner) step(job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, name, err, time.Since(start))
	return err
}

func (r *Runner) export(ctx context.Context, cfg config.Config, log *zap.Logger, t *table.Table) error {
	repo, err := storage.New(ctx, storage.Config{
		Kind:      cfg.Storage.Kind,
		DSN:       cfg.Storage.DSN,
		Table:     cfg.Storage.Table,
		BatchSize: cfg.Storage.BatchSize,
		Logger:    log.Named("storage"),
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	n, err := storage.Export(ctx, repo, cfg.Storage.Table, t)
	if err != nil {
		return err
	}
	metrics.RecordRow(cfg.Job, "exported", n)
	log.Info("exported analytics",
		zap.String("kind", cfg.Storage.Kind),
		zap.String("table", cfg.Storage.Table),
		zap.Int64("rows", n))
	return nil
}

// source picks the datasource for an input: http(s) URLs are fetched with
// retries, anything else is a local file.
func source(path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewSource(httpds.NewClient(httpds.Config{MaxRetries: 3}), path)
	}
	return file.NewLocal(path)
}

func readCSV(ctx context.Context, path string) (*table.Table, error) {
	t, err := csv.ReadFile(ctx, source(path), csv.Options{TrimSpace: true})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

func configSnapshot(cfg config.Config) map[string]string {
	m := map[string]string{
		"root":         cfg.Root,
		"job":          cfg.Job,
		"winsor_lower": strconv.FormatFloat(cfg.Transform.WinsorLower, 'g', -1, 64),
		"winsor_upper": strconv.FormatFloat(cfg.Transform.WinsorUpper, 'g', -1, 64),
		"match_column": cfg.Transform.MatchColumn,
	}
	if cfg.Storage.Kind != "" {
		m["storage_kind"] = cfg.Storage.Kind
		m["storage_table"] = cfg.Storage.Table
	}
	return m
}
