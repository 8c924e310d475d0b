package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csvpg/internal/importer"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

var (
	schemaFromCSV   string
	schemaFromTable string
	schemaColsFile  string
	schemaLabels    []string
	schemaTable     string
	schemaNS        string
	schemaKey       string
	schemaNotNull   []string
	schemaFormat    string
	schemaOutput    string
	schemaDelim     string
	schemaEncoding  string
	schemaLazy      bool
	schemaSample    int
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Derive a table schema without importing anything",
	Long: `Derives the schema an import would use and prints it as CREATE TABLE DDL
or as a JSON document. The JSON form round-trips: edit it and feed it
back with import --columns-file to override inference.

The schema can come from sampling a CSV file, from a columns file, from
bare column labels, or from the shape of an existing table (which needs a
database connection).`,
	Example: `  csvpg schema --from-csv orders.csv --table orders
  csvpg schema --labels "Order ID,Customer,Total" --table orders --format json
  csvpg schema --from-table analytics.events --table events_copy --output events.sql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd)
	},
}

func init() {
	f := schemaCmd.Flags()
	f.StringVar(&schemaFromCSV, "from-csv", "", "derive the schema by sampling this CSV file")
	f.StringVar(&schemaFromTable, "from-table", "", "derive the schema from an existing table (namespace.table)")
	f.StringVar(&schemaColsFile, "columns-file", "", "derive the schema from a column definition file")
	f.StringSliceVar(&schemaLabels, "labels", nil, "derive the schema from bare column labels")
	f.StringVar(&schemaTable, "table", "", "name for the generated table (required)")
	f.StringVar(&schemaNS, "schema", "", "namespace for the generated table")
	f.StringVar(&schemaKey, "primary-key", "", "mark this column as the primary key")
	f.StringSliceVar(&schemaNotNull, "not-null", nil, "mark these columns NOT NULL")
	f.StringVar(&schemaFormat, "format", "sql", "output format: sql or json")
	f.StringVar(&schemaOutput, "output", "", "write to this file instead of stdout")
	f.StringVar(&schemaDelim, "delimiter", "", `field delimiter for --from-csv (single character or \t)`)
	f.StringVar(&schemaEncoding, "encoding", "", "source charset for --from-csv")
	f.BoolVar(&schemaLazy, "lazy-quotes", false, "accept stray quotes inside fields")
	f.IntVar(&schemaSample, "sample-rows", 0, "rows sampled for type inference (default 100)")
	_ = schemaCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command) error {
	delim, err := parseDelimiter(schemaDelim)
	if err != nil {
		return err
	}

	req := importer.SchemaRequest{
		CSVPath:     schemaFromCSV,
		ColumnsFile: schemaColsFile,
		Labels:      schemaLabels,
		FromTable:   schemaFromTable,
		Table:       schemaTable,
		Namespace:   schemaNS,
		PrimaryKey:  schemaKey,
		NotNull:     schemaNotNull,
		Delimiter:   delim,
		Encoding:    schemaEncoding,
		LazyQuotes:  schemaLazy,
		SampleRows:  schemaSample,
	}

	imp := &importer.Importer{Log: log}
	if req.FromTable != "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if req.Namespace == "" {
			req.Namespace = cfg.Import.Namespace
		}
		repo, err := storage.New(cmd.Context(), cfg.Storage())
		if err != nil {
			return fmt.Errorf("connect to %s: %w", cfg.Redacted(), err)
		}
		defer repo.Close()
		imp.Repo = repo
	}

	s, err := imp.BuildSchema(cmd.Context(), req)
	if err != nil {
		return err
	}

	if schemaOutput != "" {
		return schema.Save(s, schemaOutput, schemaFormat)
	}
	rendered, err := schema.Export(s, schemaFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return nil
}
