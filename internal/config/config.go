// Package config defines the run configuration of the orders ETL: where the
// raw inputs live, where artifacts go, the tunable transform parameters and
// the optional SQL export and metrics backends.
//
// A Config is built once by the entry point (Default, then Load over it) and
// passed down explicitly. Files may be JSON or YAML, chosen by extension:
//
//	job: orders_etl
//	root: /srv/bootcamp
//	transform:
//	  winsor_lower: 0.01
//	  winsor_upper: 0.99
//	storage:
//	  kind: sqlite
//	  dsn: data/processed/analytics.db
//	  table: analytics
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ordersetl/internal/datasource/httpds"
	"ordersetl/internal/join"
	"ordersetl/internal/transformer/builtin"
)

// Config is the top-level configuration object.
type Config struct {
	// Job names the run in logs and metrics labels.
	Job string `json:"job" yaml:"job"`

	// Root is the project directory; relative paths resolve against it.
	Root string `json:"root" yaml:"root"`

	Inputs    Inputs    `json:"inputs" yaml:"inputs"`
	Outputs   Outputs   `json:"outputs" yaml:"outputs"`
	Transform Transform `json:"transform" yaml:"transform"`
	Storage   Storage   `json:"storage" yaml:"storage"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
}

// Inputs are the raw CSV files. Either may be an http(s) URL.
type Inputs struct {
	Orders string `json:"orders" yaml:"orders"`
	Users  string `json:"users" yaml:"users"`
}

// Outputs are the artifact paths. All three tables are Parquet.
type Outputs struct {
	OrdersClean string `json:"orders_clean" yaml:"orders_clean"`
	Users       string `json:"users" yaml:"users"`
	Analytics   string `json:"analytics" yaml:"analytics"`
	RunMeta     string `json:"run_meta" yaml:"run_meta"`
}

// Transform holds the tunable cleaning parameters.
type Transform struct {
	StatusMap   map[string]string `json:"status_map" yaml:"status_map"`
	WinsorLower float64           `json:"winsor_lower" yaml:"winsor_lower"`
	WinsorUpper float64           `json:"winsor_upper" yaml:"winsor_upper"`
	JoinSuffix  string            `json:"join_suffix" yaml:"join_suffix"`
	// MatchColumn is the users column whose presence after the join defines
	// the match rate.
	MatchColumn string `json:"match_column" yaml:"match_column"`
}

// Storage configures the optional export of the analytics table. An empty
// Kind disables the export.
type Storage struct {
	Kind      string `json:"kind" yaml:"kind"`
	DSN       string `json:"dsn" yaml:"dsn"`
	Table     string `json:"table" yaml:"table"`
	BatchSize int    `json:"batch_size" yaml:"batch_size"`
}

// Metrics selects the metrics backend: "", "none", "pushgateway" or
// "datadog".
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Default returns the standard project layout under root:
//
//	data/raw/orders.csv, data/raw/users.csv
//	data/processed/{orders_clean,users,analytics_table}.parquet
//	data/processed/_run_meta.json
func Default(root string) Config {
	if root == "" {
		root = "."
	}
	return Config{
		Job:  "orders_etl",
		Root: root,
		Inputs: Inputs{
			Orders: filepath.Join("data", "raw", "orders.csv"),
			Users:  filepath.Join("data", "raw", "users.csv"),
		},
		Outputs: Outputs{
			OrdersClean: filepath.Join("data", "processed", "orders_clean.parquet"),
			Users:       filepath.Join("data", "processed", "users.parquet"),
			Analytics:   filepath.Join("data", "processed", "analytics_table.parquet"),
			RunMeta:     filepath.Join("data", "processed", "_run_meta.json"),
		},
		Transform: Transform{
			StatusMap:   maps.Clone(builtin.StatusMap),
			WinsorLower: builtin.DefaultWinsorLower,
			WinsorUpper: builtin.DefaultWinsorUpper,
			JoinSuffix:  join.DefaultSuffix,
			MatchColumn: "country",
		},
	}
}

// Load reads path over base. Keys absent from the file keep base's values;
// a status_map in the file replaces the default map entirely. Unknown keys
// are rejected.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := base
	cfg.Transform.StatusMap = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if cfg.Transform.StatusMap == nil {
		cfg.Transform.StatusMap = base.Transform.StatusMap
	}
	return cfg, nil
}

// Path resolves p against Root unless it is absolute or an http(s) URL.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || httpds.IsURL(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Resolved returns a copy with every input and output path resolved against
// Root.
func (c Config) Resolved() Config {
	out := c
	out.Inputs = Inputs{Orders: c.Path(c.Inputs.Orders), Users: c.Path(c.Inputs.Users)}
	out.Outputs = Outputs{
		OrdersClean: c.Path(c.Outputs.OrdersClean),
		Users:       c.Path(c.Outputs.Users),
		Analytics:   c.Path(c.Outputs.Analytics),
		RunMeta:     c.Path(c.Outputs.RunMeta),
	}
	return out
}
