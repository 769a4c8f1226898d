// Package config loads docimport settings. Environment variables override
// the config file, which overrides built-in defaults.
//
// Keys are nested (store.path, delivery.workers, csv.columnTypes). Every
// key can be overridden by an environment variable named DOCIMPORT_ plus
// the upper-cased key with dots replaced by underscores, for example
// DOCIMPORT_DELIVERY_WORKERS. Durations use Go syntax ("500ms", "31s").
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "DOCIMPORT"

// Canonical importer names.
const (
	ImporterDelimited  = "delimited"
	ImporterRelational = "relational"
	ImporterFeed       = "feed"
	ImporterCollection = "collection"
)

var importerAliases = map[string]string{
	ImporterDelimited:  ImporterDelimited,
	"csv":              ImporterDelimited,
	ImporterRelational: ImporterRelational,
	"jdbc":             ImporterRelational,
	ImporterFeed:       ImporterFeed,
	"couchdb":          ImporterFeed,
	ImporterCollection: ImporterCollection,
	"mongodb":          ImporterCollection,
}

// ErrInvalidConfig wraps every validation and load failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete docimport configuration.
type Config struct {
	Importer string         `mapstructure:"importer"`
	Store    StoreConfig    `mapstructure:"store"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	CSV      CSVConfig      `mapstructure:"csv"`
	JDBC     JDBCConfig     `mapstructure:"jdbc"`
	CouchDB  CouchDBConfig  `mapstructure:"couchdb"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Schedule string         `mapstructure:"schedule"`
	Watch    bool           `mapstructure:"watch"`
	Progress int            `mapstructure:"progress"`
}

// StoreConfig locates the document store.
type StoreConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"inMemory"`
}

// AuditConfig locates the audit files.
type AuditConfig struct {
	Dir         string `mapstructure:"dir"`
	SuccessFile string `mapstructure:"successFile"`
	ErrorFile   string `mapstructure:"errorFile"`
}

// DeliveryConfig tunes the delivery sink.
type DeliveryConfig struct {
	Workers           int           `mapstructure:"workers"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CancelledDelay    time.Duration `mapstructure:"cancelledDelay"`
	CancelledRetries  int           `mapstructure:"cancelledRetries"`
	OverloadedDelay   time.Duration `mapstructure:"overloadedDelay"`
	OverloadedRetries int           `mapstructure:"overloadedRetries"`
	TimeoutDelay      time.Duration `mapstructure:"timeoutDelay"`
	TimeoutRetries    int           `mapstructure:"timeoutRetries"`
}

// CSVConfig configures the delimited importer.
type CSVConfig struct {
	Path                  string   `mapstructure:"path"`
	Separator             string   `mapstructure:"separator"`
	Quote                 string   `mapstructure:"quote"`
	SkipFirstLineForNames bool     `mapstructure:"skipFirstLineForNames"`
	ColumnNames           []string `mapstructure:"columnNames"`
	ColumnTypes           []string `mapstructure:"columnTypes"`
	KeyColumnIndex        int      `mapstructure:"keyColumnIndex"`
	KeyPrefix             string   `mapstructure:"keyPrefix"`
	TotalColumns          int      `mapstructure:"totalColumns"`
	DateFormat            string   `mapstructure:"dateFormat"`
	Locale                string   `mapstructure:"locale"`
	Sheet                 string   `mapstructure:"sheet"`
}

// JDBCConfig configures the relational importer.
type JDBCConfig struct {
	Driver           string `mapstructure:"driver"`
	DSN              string `mapstructure:"dsn"`
	Catalog          string `mapstructure:"catalog"`
	SchemaPattern    string `mapstructure:"schemaPattern"`
	TableNamePattern string `mapstructure:"tableNamePattern"`
	SchemaID         string `mapstructure:"schemaId"`
}

// CouchDBConfig configures the feed importer.
type CouchDBConfig struct {
	URL string `mapstructure:"url"`
}

// MongoDBConfig configures the collection importer.
type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	TypeField  string `mapstructure:"typeField"`
	TypeValue  string `mapstructure:"typeValue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("importer", ImporterDelimited)
	v.SetDefault("store.path", "./docimport.db")
	v.SetDefault("store.inMemory", false)
	v.SetDefault("audit.dir", ".")
	v.SetDefault("audit.successFile", "success.out")
	v.SetDefault("audit.errorFile", "error.out")

	v.SetDefault("delivery.workers", 0)
	v.SetDefault("delivery.timeout", 500*time.Millisecond)
	v.SetDefault("delivery.cancelledDelay", 31*time.Second)
	v.SetDefault("delivery.cancelledRetries", 100)
	v.SetDefault("delivery.overloadedDelay", 100*time.Millisecond)
	v.SetDefault("delivery.overloadedRetries", 100)
	v.SetDefault("delivery.timeoutDelay", time.Duration(0))
	v.SetDefault("delivery.timeoutRetries", 0)

	v.SetDefault("csv.path", "")
	v.SetDefault("csv.separator", ",")
	v.SetDefault("csv.quote", `"`)
	v.SetDefault("csv.skipFirstLineForNames", false)
	v.SetDefault("csv.columnNames", []string{})
	v.SetDefault("csv.columnTypes", []string{})
	v.SetDefault("csv.keyColumnIndex", 0)
	v.SetDefault("csv.keyPrefix", "")
	v.SetDefault("csv.totalColumns", 0)
	v.SetDefault("csv.dateFormat", "EEE MMM dd HH:mm:ss z yyyy")
	v.SetDefault("csv.locale", "EN_US")
	v.SetDefault("csv.sheet", "")

	v.SetDefault("jdbc.driver", "postgres")
	v.SetDefault("jdbc.dsn", "")
	v.SetDefault("jdbc.catalog", "")
	v.SetDefault("jdbc.schemaPattern", "public")
	v.SetDefault("jdbc.tableNamePattern", "%")
	v.SetDefault("jdbc.schemaId", "myDatabaseSchema")

	v.SetDefault("couchdb.url", "http://127.0.0.1:5984/database_export/_all_docs?include_docs=true")

	v.SetDefault("mongodb.uri", "mongodb://127.0.0.1:27017/")
	v.SetDefault("mongodb.database", "test")
	v.SetDefault("mongodb.collection", "restaurants")
	v.SetDefault("mongodb.typeField", "type")
	v.SetDefault("mongodb.typeValue", "restaurant")

	v.SetDefault("schedule", "")
	v.SetDefault("watch", false)
	v.SetDefault("progress", 0)
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind CLI flags to it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, path, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NormalizeImporter maps an importer name or alias to its canonical name.
func NormalizeImporter(name string) (string, error) {
	canonical, ok := importerAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: unknown importer %q", ErrInvalidConfig, name)
	}
	return canonical, nil
}

// Validate checks the configuration and canonicalizes the importer name.
func (c *Config) Validate() error {
	importer, err := NormalizeImporter(c.Importer)
	if err != nil {
		return err
	}
	c.Importer = importer

	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", ErrInvalidConfig)
	}
	if err := c.Delivery.validate(); err != nil {
		return err
	}

	switch c.Importer {
	case ImporterDelimited:
		if c.CSV.Path == "" {
			return fmt.Errorf("%w: csv.path is required", ErrInvalidConfig)
		}
		if _, err := c.CSV.SeparatorRune(); err != nil {
			return err
		}
		if _, err := c.CSV.QuoteRune(); err != nil {
			return err
		}
	case ImporterRelational:
		if c.JDBC.Driver == "" || c.JDBC.DSN == "" {
			return fmt.Errorf("%w: jdbc.driver and jdbc.dsn are required", ErrInvalidConfig)
		}
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: schedule %q: %w", ErrInvalidConfig, c.Schedule, err)
		}
	}
	if c.Watch && c.Importer != ImporterDelimited {
		return fmt.Errorf("%w: watch requires the delimited importer", ErrInvalidConfig)
	}
	if c.Progress < 0 {
		return fmt.Errorf("%w: progress must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (d DeliveryConfig) validate() error {
	switch {
	case d.Workers < 0:
		return fmt.Errorf("%w: delivery.workers must not be negative", ErrInvalidConfig)
	case d.Timeout <= 0:
		return fmt.Errorf("%w: delivery.timeout must be positive", ErrInvalidConfig)
	case d.CancelledDelay < 0, d.OverloadedDelay < 0, d.TimeoutDelay < 0:
		return fmt.Errorf("%w: retry delays must not be negative", ErrInvalidConfig)
	case d.CancelledRetries < 0, d.OverloadedRetries < 0, d.TimeoutRetries < 0:
		return fmt.Errorf("%w: retry counts must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SeparatorRune returns the field separator. "\t" and "tab" select a tab.
func (c CSVConfig) SeparatorRune() (rune, error) {
	switch c.Separator {
	case `\t`, "tab":
		return '\t', nil
	}
	return singleRune("csv.separator", c.Separator)
}

// QuoteRune returns the quote character.
func (c CSVConfig) QuoteRune() (rune, error) {
	return singleRune("csv.quote", c.Quote)
}

func singleRune(key, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: %s must be a single character, got %q", ErrInvalidConfig, key, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
