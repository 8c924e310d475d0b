package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"csvpg/internal/importer"
	"csvpg/internal/parser/htmltable"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

var (
	importCSV      string
	importHTML     string
	importSelector string
	importTable    string
	importNS       string
	importCreate   bool
	importIfExists string
	importKey      string
	importColsFile string
	importDelim    string
	importEncoding string
	importLazy     bool
	importSample   int
	importBatch    int
	importForce    bool
	importQuiet    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV file or an HTML table into a database table",
	Long: `Samples the source to infer column names and types (or reads them from a
columns file), creates the target table when asked to, and streams the
rows in batches inside one transaction. Rows that cannot be converted are
reported and skipped; any storage failure rolls the whole run back.`,
	Example: `  csvpg import --csv orders.csv --table orders --create-table
  csvpg import --csv orders.csv --table orders --primary-key order_id
  csvpg import --html report.html --selector "#results" --table results --create-table
  csvpg import --csv daily.csv --table orders --if-exists replace --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd)
	},
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importCSV, "csv", "", "CSV file to import")
	f.StringVar(&importHTML, "html", "", "HTML file to import a table from")
	f.StringVar(&importSelector, "selector", "", "CSS selector picking the HTML table (default: first table)")
	f.StringVar(&importTable, "table", "", "target table name (required)")
	f.StringVar(&importNS, "schema", "", "target namespace (default from the profile, then public)")
	f.BoolVar(&importCreate, "create-table", false, "create the table when it does not exist")
	f.StringVar(&importIfExists, "if-exists", "", "policy for an existing table: fail, append or replace (default append)")
	f.StringVar(&importKey, "primary-key", "", "upsert on this column instead of plain inserts")
	f.StringVar(&importColsFile, "columns-file", "", "column definition file overriding inference")
	f.StringVar(&importDelim, "delimiter", "", `field delimiter (single character or \t; default comma)`)
	f.StringVar(&importEncoding, "encoding", "", "source charset: utf-8, utf-8-sig, latin-1 or windows-1252")
	f.BoolVar(&importLazy, "lazy-quotes", false, "accept stray quotes inside fields")
	f.IntVar(&importSample, "sample-rows", 0, "rows sampled for type inference (default 100)")
	f.IntVar(&importBatch, "batch-size", 0, "rows per insert batch (default 1000)")
	f.BoolVar(&importForce, "force", false, "replace an existing table without asking")
	f.BoolVar(&importQuiet, "quiet", false, "suppress progress and the summary line")
	_ = importCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command) error {
	if (importCSV == "") == (importHTML == "") {
		return fmt.Errorf("exactly one of --csv or --html is required")
	}
	delim, err := parseDelimiter(importDelim)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	repo, err := storage.New(ctx, cfg.Storage())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Redacted(), err)
	}
	defer repo.Close()

	opts := importer.Options{
		CSVPath:     importCSV,
		Table:       importTable,
		Namespace:   importNS,
		CreateTable: importCreate,
		ColumnsFile: importColsFile,
		PrimaryKey:  importKey,
		IfExists:    importIfExists,
		Delimiter:   delim,
		Encoding:    importEncoding,
		LazyQuotes:  importLazy,
		SampleRows:  importSample,
		BatchSize:   importBatch,
	}
	if opts.Namespace == "" {
		opts.Namespace = cfg.Import.Namespace
	}
	if opts.SampleRows == 0 {
		opts.SampleRows = cfg.Import.SampleRows
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = cfg.Import.BatchSize
	}

	if importHTML != "" {
		table, err := htmltable.ParseFile(importHTML, importSelector)
		if err != nil {
			return err
		}
		opts.Source = importer.MemorySource{Headers: table.Headers, Data: table.Rows}
	}

	if opts.IfExists == importer.IfExistsReplace && !importForce {
		ok, err := confirmReplace(cmd, repo, opts.Namespace, opts.Table)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "aborted")
			return nil
		}
	}

	errOut := cmd.ErrOrStderr()
	progressed := false
	if !importQuiet {
		opts.Progress = func(done int) {
			progressed = true
			fmt.Fprintf(errOut, "\rimported %d rows", done)
		}
	}

	imp := &importer.Importer{Repo: repo, Log: log}
	out, runErr := imp.Run(ctx, opts)
	if progressed {
		fmt.Fprintln(errOut)
	}
	if out != nil {
		printOutcome(cmd, out)
	}
	return runErr
}

// confirmReplace asks before a replace run drops an existing table. A
// missing table needs no confirmation.
func confirmReplace(cmd *cobra.Command, repo storage.Repository, namespace, table string) (bool, error) {
	if namespace == "" {
		namespace = schema.DefaultNamespace
	}
	exists, err := repo.TableExists(cmd.Context(), namespace, table)
	if err != nil {
		return false, fmt.Errorf("check table: %w", err)
	}
	if !exists {
		return true, nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Replace table %s.%s and all of its rows? [y/N] ", namespace, table)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// printOutcome reports warnings and skipped rows on stderr and, unless
// quiet, the human summary on stdout. At most ten row errors are shown.
func printOutcome(cmd *cobra.Command, out *importer.Outcome) {
	w := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	for _, warn := range out.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", warn)
	}
	if len(out.Errors) > 0 {
		fmt.Fprintf(errOut, "%d rows skipped:\n", len(out.Errors))
		shown := out.Errors
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, e := range shown {
			fmt.Fprintf(errOut, "  %s\n", e)
		}
		if rest := len(out.Errors) - len(shown); rest > 0 {
			fmt.Fprintf(errOut, "  ... and %d more\n", rest)
		}
	}

	if importQuiet || out.Schema == nil {
		return
	}
	target := out.Schema.QualifiedName()
	if out.TableCreated {
		fmt.Fprintf(w, "created table %s\n%s\n", target, out.Schema.CreateSQL())
	}
	fmt.Fprintf(w, "imported %d rows into %s in %s\n",
		out.Imported, target, out.Elapsed.Round(time.Millisecond))
}

// parseDelimiter turns the flag text into the delimiter rune. The flag
// accepts a single character, the two-character escape \t, or the word
// "tab".
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r, nil
}
