// Package importer drives one CSV-to-table import end to end: sample the
// source, infer or load the schema, reconcile the target table, then
// stream, convert and batch rows into the store inside one transaction.
package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"csvpg/internal/logging"
	"csvpg/internal/metrics"
	"csvpg/internal/parser/csv"
	"csvpg/internal/records"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// Policies for an existing target table.
const (
	IfExistsFail    = "fail"
	IfExistsAppend  = "append"
	IfExistsReplace = "replace"
)

// Defaults applied when Options leave the knobs zero.
const (
	DefaultBatchSize  = 1000
	DefaultSampleRows = csv.DefaultSampleRows
)

// Options configure one import run.
type Options struct {
	// CSVPath names the file to import. Source wins when both are set.
	CSVPath string
	// Source supplies rows from somewhere other than a CSV file (an HTML
	// table, a test fixture).
	Source RowSource

	Table     string
	Namespace string

	// CreateTable permits creating the target table when it is missing.
	CreateTable bool
	// ColumnsFile names a column definition file that overrides sampled
	// inference.
	ColumnsFile string
	// PrimaryKey requests upserts keyed on this column.
	PrimaryKey string
	// IfExists picks the policy for an existing target: fail, append or
	// replace. Empty means append.
	IfExists string

	Delimiter  rune
	Encoding   string
	LazyQuotes bool

	SampleRows int
	BatchSize  int

	// Progress, when set, is called synchronously after each batch with
	// the running number of rows handed to the store.
	Progress func(done int)
}

// Outcome reports what one run did. Errors holds the per-row failures
// ("Row 17: ...") that were skipped; Warnings holds non-fatal plan
// degradations such as an upsert falling back to plain inserts.
type Outcome struct {
	Imported     int
	ErrorCount   int
	Errors       []string
	Warnings     []string
	TableCreated bool
	Schema       *schema.Schema
	Elapsed      time.Duration
}

// Importer runs imports against one repository. Log and Metrics may be
// nil; nil Metrics falls back to the process-wide backend.
type Importer struct {
	Repo    storage.Repository
	Log     *zap.Logger
	Metrics metrics.Backend
}

func (imp *Importer) backend() metrics.Backend {
	if imp.Metrics != nil {
		return imp.Metrics
	}
	return metrics.Default()
}

// Run imports one source into namespace.table. The outcome is non-nil
// once a schema was resolved, even when the load later failed; rows
// reported as imported before a failure were rolled back with the rest
// of the transaction.
func (imp *Importer) Run(ctx context.Context, opts Options) (*Outcome, error) {
	start := time.Now()

	if opts.Table == "" {
		return nil, fmt.Errorf("%w: missing table name", ErrConfiguration)
	}
	source := opts.Source
	if source == nil {
		if opts.CSVPath == "" {
			return nil, fmt.Errorf("%w: missing csv path", ErrConfiguration)
		}
		source = FileSource{Path: opts.CSVPath, Options: csv.Options{
			Delimiter:  opts.Delimiter,
			Encoding:   opts.Encoding,
			LazyQuotes: opts.LazyQuotes,
		}}
	}
	policy := opts.IfExists
	if policy == "" {
		policy = IfExistsAppend
	}
	switch policy {
	case IfExistsFail, IfExistsAppend, IfExistsReplace:
	default:
		return nil, fmt.Errorf("%w: unknown if-exists policy %q", ErrConfiguration, opts.IfExists)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = schema.DefaultNamespace
	}

	log := logging.Or(imp.Log).With(
		zap.String("run_id", uuid.NewString()),
		zap.String("table", namespace+"."+opts.Table),
	)

	exists, err := imp.Repo.TableExists(ctx, namespace, opts.Table)
	if err != nil {
		return nil, fmt.Errorf("check table: %w", err)
	}
	if exists && policy == IfExistsFail {
		return nil, fmt.Errorf("%w: %s.%s (use the append or replace policy)", ErrTableExists, namespace, opts.Table)
	}

	headers, samples, err := source.Sample(opts.SampleRows)
	if err != nil {
		return nil, fmt.Errorf("sample source: %w", err)
	}

	buildOpt := schema.BuildOptions{Table: opts.Table, Namespace: namespace, PrimaryKey: opts.PrimaryKey}
	var s *schema.Schema
	if opts.ColumnsFile != "" {
		defs, err := schema.ReadColumnsFile(opts.ColumnsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		s = schema.FromColumns(defs, headers, samples, buildOpt)
	} else {
		s = schema.FromSample(headers, samples, buildOpt)
	}
	if opts.CSVPath != "" {
		s.Source.Detail = opts.CSVPath
	}

	out := &Outcome{Schema: s}

	if exists && policy == IfExistsReplace {
		if err := imp.Repo.DropTable(ctx, namespace, opts.Table); err != nil {
			return out, fmt.Errorf("drop table: %w", err)
		}
		log.Info("dropped existing table")
		exists = false
	}

	if !exists {
		if !opts.CreateTable && policy != IfExistsReplace {
			return out, fmt.Errorf("%w: table %s.%s does not exist and table creation is disabled",
				ErrConfiguration, namespace, opts.Table)
		}
		if err := imp.Repo.CreateTable(ctx, s); err != nil {
			return out, fmt.Errorf("create table: %w", err)
		}
		out.TableCreated = true
		log.Info("created table", zap.Int("columns", len(s.Columns)))
	} else {
		missing, err := imp.missingColumns(ctx, s)
		if err != nil {
			return out, err
		}
		if len(missing) > 0 {
			return out, fmt.Errorf("%w: existing table %s.%s is missing columns: %s",
				ErrConfiguration, namespace, opts.Table, strings.Join(missing, ", "))
		}
	}

	plan, warn := buildPlan(ctx, imp.Repo, s, opts.PrimaryKey, out.TableCreated)
	if warn != "" {
		out.Warnings = append(out.Warnings, warn)
		log.Warn("upsert disabled", zap.String("reason", warn))
	}

	loader, err := imp.Repo.OpenInsert(ctx, plan)
	if err != nil {
		return out, fmt.Errorf("open insert: %w", err)
	}

	batches, loadErr := imp.load(ctx, loader, source, s, headers, batchSize, opts.Progress, out)
	out.Elapsed = time.Since(start)

	status := "ok"
	if loadErr != nil {
		status = "error"
	}
	mx := imp.backend()
	mx.IncCounter(metrics.RowsTotal, float64(out.Imported), metrics.Labels{"kind": "imported", "table": opts.Table})
	mx.IncCounter(metrics.RowsTotal, float64(out.ErrorCount), metrics.Labels{"kind": "failed", "table": opts.Table})
	mx.IncCounter(metrics.BatchesTotal, float64(batches), metrics.Labels{"table": opts.Table})
	mx.ObserveHistogram(metrics.DurationSeconds, out.Elapsed.Seconds(), metrics.Labels{"status": status, "table": opts.Table})

	if loadErr != nil {
		log.Error("import failed", zap.Error(loadErr), zap.Int("rows_before_failure", out.Imported))
		return out, loadErr
	}

	log.Info("import complete",
		zap.Int("rows", out.Imported),
		zap.Int("row_errors", out.ErrorCount),
		zap.Int("batches", batches),
		zap.Bool("upsert", plan.Upsert()),
		zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

type rowError struct {
	line int
	msg  string
}

// load streams the source through the record builder into the loader in
// batches, committing once at the end. Row-local failures are collected
// and skipped; any batch or source failure aborts and rolls back.
func (imp *Importer) load(
	ctx context.Context,
	loader storage.Loader,
	source RowSource,
	s *schema.Schema,
	headers []string,
	batchSize int,
	progress func(done int),
	out *Outcome,
) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	builder := records.NewBuilder(s, headers)

	var (
		parseMu     sync.Mutex
		parseErrors []rowError
	)
	onErr := func(line int, err error) {
		parseMu.Lock()
		parseErrors = append(parseErrors, rowError{line: line, msg: err.Error()})
		parseMu.Unlock()
	}

	rowCh := make(chan *records.Row, 256)
	readErr := make(chan error, 1)
	go func() {
		defer close(rowCh)
		readErr <- source.Rows(ctx, rowCh, onErr)
	}()

	var (
		chunk       = make([]*records.Row, 0, batchSize)
		buildErrors []rowError
		written     int
		batches     int
		readerDone  bool
	)

	// finalize merges both error streams into line order and fixes the
	// counters, on the success and failure paths alike. By the time it
	// runs the reader goroutine has exited, so parseErrors is quiet.
	finalize := func() {
		all := append(parseErrors, buildErrors...)
		sort.SliceStable(all, func(i, j int) bool { return all[i].line < all[j].line })
		for _, e := range all {
			out.Errors = append(out.Errors, fmt.Sprintf("Row %d: %s", e.line, e.msg))
		}
		out.ErrorCount = len(out.Errors)
		out.Imported = written
	}

	abort := func(ferr error) (int, error) {
		cancel()
		for row := range rowCh {
			row.Drop()
		}
		if !readerDone {
			<-readErr
			readerDone = true
		}
		for _, r := range chunk {
			r.Drop()
		}
		_ = loader.Rollback(context.WithoutCancel(ctx))
		finalize()
		return batches, ferr
	}

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		rows := make([][]any, len(chunk))
		for i, r := range chunk {
			rows[i] = r.V
		}
		if _, err := loader.Write(ctx, rows); err != nil {
			return fmt.Errorf("write batch (source lines %d..%d): %w",
				chunk[0].Line, chunk[len(chunk)-1].Line, err)
		}
		written += len(chunk)
		batches++
		for _, r := range chunk {
			r.Free()
		}
		chunk = chunk[:0]
		if progress != nil {
			progress(written)
		}
		return nil
	}

	for row := range rowCh {
		line := row.Line
		rec, err := builder.Build(row)
		row.Free()
		if err != nil {
			buildErrors = append(buildErrors, rowError{line: line, msg: err.Error()})
			continue
		}
		chunk = append(chunk, rec)
		if len(chunk) >= batchSize {
			if err := flush(); err != nil {
				return abort(err)
			}
		}
	}

	if serr := <-readErr; serr != nil {
		readerDone = true
		return abort(fmt.Errorf("read source: %w", serr))
	}
	readerDone = true

	if err := flush(); err != nil {
		return abort(err)
	}
	if err := loader.Commit(ctx); err != nil {
		finalize()
		return batches, fmt.Errorf("commit: %w", err)
	}
	finalize()
	return batches, nil
}

func (imp *Importer) missingColumns(ctx context.Context, s *schema.Schema) ([]string, error) {
	have, err := imp.Repo.ExistingColumns(ctx, s.Namespace, s.Table)
	if err != nil {
		return nil, fmt.Errorf("inspect table: %w", err)
	}
	var missing []string
	for _, name := range s.ColumnNames() {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
