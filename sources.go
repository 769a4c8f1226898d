package docimport

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/docimport/config"
	"github.com/poiesic/docimport/source"
	"github.com/poiesic/docimport/source/collection"
	"github.com/poiesic/docimport/source/delimited"
	"github.com/poiesic/docimport/source/feed"
	"github.com/poiesic/docimport/source/relational"
)

// NewSource builds the source selected by cfg.Importer.
func NewSource(cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	importer, err := config.NormalizeImporter(cfg.Importer)
	if err != nil {
		return nil, err
	}

	switch importer {
	case config.ImporterDelimited:
		sep, err := cfg.CSV.SeparatorRune()
		if err != nil {
			return nil, err
		}
		quote, err := cfg.CSV.QuoteRune()
		if err != nil {
			return nil, err
		}
		return delimited.New(delimited.Config{
			Path:                  cfg.CSV.Path,
			Separator:             sep,
			Quote:                 quote,
			SkipFirstLineForNames: cfg.CSV.SkipFirstLineForNames,
			ColumnNames:           cfg.CSV.ColumnNames,
			ColumnTypes:           cfg.CSV.ColumnTypes,
			KeyColumnIndex:        cfg.CSV.KeyColumnIndex,
			KeyPrefix:             cfg.CSV.KeyPrefix,
			TotalColumns:          cfg.CSV.TotalColumns,
			DateFormat:            cfg.CSV.DateFormat,
			LanguageTag:           cfg.CSV.Locale,
			Sheet:                 cfg.CSV.Sheet,
		}, delimited.WithLogger(logger)), nil

	case config.ImporterRelational:
		return relational.New(relational.Config{
			Driver:           cfg.JDBC.Driver,
			DSN:              cfg.JDBC.DSN,
			Catalog:          cfg.JDBC.Catalog,
			SchemaPattern:    cfg.JDBC.SchemaPattern,
			TableNamePattern: cfg.JDBC.TableNamePattern,
			SchemaID:         cfg.JDBC.SchemaID,
		}, relational.WithLogger(logger)), nil

	case config.ImporterFeed:
		return feed.New(feed.Config{URL: cfg.CouchDB.URL}, feed.WithLogger(logger)), nil

	case config.ImporterCollection:
		return collection.New(collection.Config{
			URI:        cfg.MongoDB.URI,
			Database:   cfg.MongoDB.Database,
			Collection: cfg.MongoDB.Collection,
			TypeField:  cfg.MongoDB.TypeField,
			TypeValue:  cfg.MongoDB.TypeValue,
		}, collection.WithLogger(logger)), nil
	}
	return nil, fmt.Errorf("%w: unknown importer %q", config.ErrInvalidConfig, cfg.Importer)
}
