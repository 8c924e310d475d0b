package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"csvpg/internal/infer"
	"csvpg/internal/metrics"
	"csvpg/internal/records"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// fakeLoader records every batch. Batches are deep-copied because the
// importer recycles row slices after Write returns, exactly like a real
// driver that serializes values immediately.
type fakeLoader struct {
	mu         sync.Mutex
	batches    [][][]any
	failAtCall int // 1-based Write call that fails; 0 never fails
	commits    int
	rollbacks  int
	commitErr  error
}

func (l *fakeLoader) Write(ctx context.Context, rows [][]any) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAtCall > 0 && len(l.batches)+1 == l.failAtCall {
		return 0, errors.New("disk full")
	}
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}
	l.batches = append(l.batches, cp)
	return int64(len(rows)), nil
}

func (l *fakeLoader) Commit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits++
	return l.commitErr
}

func (l *fakeLoader) Rollback(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollbacks++
	return nil
}

func (l *fakeLoader) rowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, b := range l.batches {
		n += len(b)
	}
	return n
}

type fakeRepo struct {
	exists    bool
	existsErr error
	columns   map[string]bool
	described *schema.Schema

	loader  *fakeLoader
	openErr error

	describeCalls int
	createCalls   int
	dropCalls     int
	created       []*schema.Schema
	openedPlans   []storage.InsertPlan
}

func (r *fakeRepo) TableExists(ctx context.Context, namespace, table string) (bool, error) {
	return r.exists, r.existsErr
}

func (r *fakeRepo) ExistingColumns(ctx context.Context, namespace, table string) (map[string]bool, error) {
	if r.columns == nil {
		return nil, errors.New("no such table")
	}
	return r.columns, nil
}

func (r *fakeRepo) DescribeTable(ctx context.Context, namespace, table string) (*schema.Schema, error) {
	r.describeCalls++
	if r.described == nil {
		return nil, errors.New("no such table")
	}
	return r.described, nil
}

func (r *fakeRepo) CreateTable(ctx context.Context, s *schema.Schema) error {
	r.createCalls++
	r.created = append(r.created, s)
	r.exists = true
	return nil
}

func (r *fakeRepo) DropTable(ctx context.Context, namespace, table string) error {
	r.dropCalls++
	r.exists = false
	return nil
}

func (r *fakeRepo) OpenInsert(ctx context.Context, plan storage.InsertPlan) (storage.Loader, error) {
	r.openedPlans = append(r.openedPlans, plan)
	if r.openErr != nil {
		return nil, r.openErr
	}
	if r.loader == nil {
		r.loader = &fakeLoader{}
	}
	return r.loader, nil
}

func (r *fakeRepo) Close() {}

var _ storage.Repository = (*fakeRepo)(nil)

// captureMetrics tallies emissions by metric name plus the label that
// distinguishes its series.
type captureMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	histos   map[string]int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{counters: map[string]float64{}, histos: map[string]int{}}
}

func (m *captureMetrics) IncCounter(name string, delta float64, labels metrics.Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name+"/"+labels["kind"]] += delta
}

func (m *captureMetrics) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histos[name+"/"+labels["status"]]++
}

func memSource() MemorySource {
	return MemorySource{
		Headers: []string{"id", "name", "price"},
		Data: [][]string{
			{"1", "alpha", "9.99"},
			{"2", "beta", "19.50"},
			{"3", "gamma", "0.25"},
			{"4", "delta", "100"},
			{"5", "epsilon", "7"},
		},
	}
}

func TestRun_CreatesTableAndImports(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	mx := newCaptureMetrics()
	imp := &Importer{Repo: repo, Metrics: mx}

	var progress []int
	out, err := imp.Run(context.Background(), Options{
		Source:      memSource(),
		Table:       "products",
		CreateTable: true,
		BatchSize:   2,
		Progress:    func(done int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !out.TableCreated || repo.createCalls != 1 {
		t.Errorf("TableCreated=%v createCalls=%d, want created once", out.TableCreated, repo.createCalls)
	}
	if out.Imported != 5 || out.ErrorCount != 0 {
		t.Errorf("Imported=%d ErrorCount=%d, want 5 and 0", out.Imported, out.ErrorCount)
	}
	if repo.loader.commits != 1 || repo.loader.rollbacks != 0 {
		t.Errorf("commits=%d rollbacks=%d, want 1 and 0", repo.loader.commits, repo.loader.rollbacks)
	}
	if got := len(repo.loader.batches); got != 3 {
		t.Fatalf("batches=%d, want 3 (sizes 2,2,1)", got)
	}
	if n := repo.loader.rowCount(); n != 5 {
		t.Errorf("rows written=%d, want 5", n)
	}

	// Progress reports running totals after each batch, in order.
	want := []int{2, 4, 5}
	if len(progress) != len(want) {
		t.Fatalf("progress calls=%v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress=%v, want %v", progress, want)
		}
	}

	// Schema carries inferred data columns plus the bookkeeping trio.
	names := out.Schema.ColumnNames()
	wantNames := []string{"id", "name", "price", "metadata", "created_at", "updated_at"}
	if len(names) != len(wantNames) {
		t.Fatalf("columns=%v, want %v", names, wantNames)
	}
	for i := range wantNames {
		if names[i] != wantNames[i] {
			t.Fatalf("columns=%v, want %v", names, wantNames)
		}
	}

	// Values arrive typed and in schema order.
	first := repo.loader.batches[0][0]
	if first[0] != int64(1) {
		t.Errorf("id value = %#v, want int64(1)", first[0])
	}
	if first[1] != "alpha" {
		t.Errorf("name value = %#v, want alpha", first[1])
	}
	if first[2] != 9.99 {
		t.Errorf("price value = %#v, want 9.99", first[2])
	}
	if first[4] == nil || first[5] == nil {
		t.Errorf("bookkeeping timestamps missing: %#v", first)
	}

	// No primary key requested: plain insert plan.
	if len(repo.openedPlans) != 1 || repo.openedPlans[0].Upsert() {
		t.Errorf("plans=%+v, want one plain insert plan", repo.openedPlans)
	}

	if got := mx.counters[metrics.RowsTotal+"/imported"]; got != 5 {
		t.Errorf("imported metric=%v, want 5", got)
	}
	if got := mx.counters[metrics.BatchesTotal+"/"]; got != 3 {
		t.Errorf("batches metric=%v, want 3", got)
	}
	if got := mx.histos[metrics.DurationSeconds+"/ok"]; got != 1 {
		t.Errorf("duration samples=%d, want 1", got)
	}
}

func TestRun_FailPolicyRejectsExistingTable(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{exists: true}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source:   memSource(),
		Table:    "products",
		IfExists: IfExistsFail,
	})
	if !errors.Is(err, ErrTableExists) {
		t.Fatalf("err = %v, want ErrTableExists", err)
	}
	if out != nil {
		t.Errorf("outcome = %+v, want nil before schema resolution", out)
	}
	if repo.loader != nil {
		t.Error("loader opened despite fail policy")
	}
}

func TestRun_ReplaceDropsAndRecreates(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{exists: true}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source:   memSource(),
		Table:    "products",
		IfExists: IfExistsReplace,
		// CreateTable stays false: replace implies recreation.
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.dropCalls != 1 || repo.createCalls != 1 {
		t.Errorf("dropCalls=%d createCalls=%d, want 1 and 1", repo.dropCalls, repo.createCalls)
	}
	if !out.TableCreated {
		t.Error("TableCreated = false after replace")
	}
	if out.Imported != 5 {
		t.Errorf("Imported=%d, want 5", out.Imported)
	}
}

func TestRun_AppendChecksExistingColumns(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		exists: true,
		columns: map[string]bool{
			"id": true, "name": true,
			"metadata": true, "created_at": true, "updated_at": true,
			// price missing
		},
	}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source: memSource(),
		Table:  "products",
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if !strings.Contains(err.Error(), "missing columns") || !strings.Contains(err.Error(), "price") {
		t.Errorf("err = %v, want missing columns naming price", err)
	}
	if out == nil || out.Schema == nil {
		t.Error("outcome should carry the resolved schema")
	}
}

func TestRun_MissingTableWithoutCreate(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source: memSource(),
		Table:  "products",
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if out == nil || out.Schema == nil {
		t.Error("outcome should carry the resolved schema")
	}
	if repo.createCalls != 0 {
		t.Errorf("createCalls=%d, want 0", repo.createCalls)
	}
}

func TestRun_OptionValidation(t *testing.T) {
	t.Parallel()

	imp := &Importer{Repo: &fakeRepo{}}

	cases := []struct {
		name string
		opts Options
		want string
	}{
		{name: "no_table", opts: Options{Source: memSource()}, want: "missing table"},
		{name: "no_source", opts: Options{Table: "t"}, want: "missing csv path"},
		{name: "bad_policy", opts: Options{Source: memSource(), Table: "t", IfExists: "maybe"}, want: "if-exists"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := imp.Run(context.Background(), tc.opts)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestRun_RowErrorsAreCollectedAndSkipped(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	imp := &Importer{Repo: repo}

	src := MemorySource{
		Headers: []string{"id", "name"},
		Data: [][]string{
			{"1", "alpha"},
			{"x", "beta"},            // bad integer: line 3
			{"3", "gamma", "extra"},  // too many fields: line 4
			{"4", "delta"},
		},
	}

	out, err := imp.Run(context.Background(), Options{
		Source:      src,
		Table:       "items",
		CreateTable: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Imported != 2 {
		t.Errorf("Imported=%d, want 2", out.Imported)
	}
	if out.ErrorCount != 2 || len(out.Errors) != 2 {
		t.Fatalf("ErrorCount=%d Errors=%v, want 2", out.ErrorCount, out.Errors)
	}
	if !strings.HasPrefix(out.Errors[0], "Row 3:") || !strings.Contains(out.Errors[0], "not a whole number") {
		t.Errorf("Errors[0] = %q", out.Errors[0])
	}
	if !strings.HasPrefix(out.Errors[1], "Row 4:") || !strings.Contains(out.Errors[1], "fields") {
		t.Errorf("Errors[1] = %q", out.Errors[1])
	}
	if repo.loader.commits != 1 {
		t.Errorf("commits=%d, want 1 (row errors are not fatal)", repo.loader.commits)
	}
}

func TestRun_UpsertOnCreatedTable(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source:      memSource(),
		Table:       "products",
		CreateTable: true,
		PrimaryKey:  "id",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", out.Warnings)
	}

	plan := repo.openedPlans[0]
	if plan.Key != "id" || !plan.Upsert() {
		t.Fatalf("plan = %+v, want upsert on id", plan)
	}
	wantUpdate := []string{"name", "price", "metadata"}
	if len(plan.UpdateColumns) != len(wantUpdate) {
		t.Fatalf("UpdateColumns = %v, want %v", plan.UpdateColumns, wantUpdate)
	}
	for i := range wantUpdate {
		if plan.UpdateColumns[i] != wantUpdate[i] {
			t.Fatalf("UpdateColumns = %v, want %v", plan.UpdateColumns, wantUpdate)
		}
	}
	if plan.TouchColumn != "updated_at" {
		t.Errorf("TouchColumn = %q, want updated_at", plan.TouchColumn)
	}

	// Created this run: the schema is the table, no live lookup needed.
	if repo.describeCalls != 0 {
		t.Errorf("describeCalls=%d, want 0", repo.describeCalls)
	}
}

func TestRun_UpsertProvenByLiveTable(t *testing.T) {
	t.Parallel()

	live := schema.New("products", "")
	live.AddColumn(schema.Column{Name: "id", Tag: infer.Integer, Constraints: []string{"PRIMARY KEY"}})
	live.AddColumn(schema.Column{Name: "name", Tag: infer.Text})

	repo := &fakeRepo{
		exists:    true,
		described: live,
		columns: map[string]bool{
			"id": true, "name": true, "price": true,
			"metadata": true, "created_at": true, "updated_at": true,
		},
	}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source:     memSource(),
		Table:      "products",
		PrimaryKey: "id",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", out.Warnings)
	}
	if !repo.openedPlans[0].Upsert() {
		t.Error("plan is not an upsert despite live PRIMARY KEY")
	}
	if repo.describeCalls != 1 {
		t.Errorf("describeCalls=%d, want 1", repo.describeCalls)
	}
}

func TestRun_UpsertDowngradesWithoutProof(t *testing.T) {
	t.Parallel()

	live := schema.New("products", "")
	live.AddColumn(schema.Column{Name: "id", Tag: infer.Integer})
	live.AddColumn(schema.Column{Name: "name", Tag: infer.Text})

	repo := &fakeRepo{
		exists:    true,
		described: live,
		columns: map[string]bool{
			"id": true, "name": true, "price": true,
			"metadata": true, "created_at": true, "updated_at": true,
		},
	}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source:     memSource(),
		Table:      "products",
		PrimaryKey: "name",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "falling back to plain INSERT") {
		t.Fatalf("warnings = %v, want one downgrade warning", out.Warnings)
	}
	if repo.openedPlans[0].Upsert() {
		t.Error("plan upserts despite unprovable uniqueness")
	}
	// The downgrade is not fatal: rows still import.
	if out.Imported != 5 {
		t.Errorf("Imported=%d, want 5", out.Imported)
	}
}

func TestRun_WriteFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{loader: &fakeLoader{failAtCall: 2}}
	imp := &Importer{Repo: repo}

	var progress []int
	out, err := imp.Run(context.Background(), Options{
		Source:      memSource(),
		Table:       "products",
		CreateTable: true,
		BatchSize:   2,
		Progress:    func(done int) { progress = append(progress, done) },
	})
	if err == nil || !strings.Contains(err.Error(), "write batch") {
		t.Fatalf("err = %v, want write batch failure", err)
	}
	if repo.loader.rollbacks != 1 || repo.loader.commits != 0 {
		t.Errorf("rollbacks=%d commits=%d, want 1 and 0", repo.loader.rollbacks, repo.loader.commits)
	}
	if out.Imported != 2 {
		t.Errorf("Imported=%d, want 2 (rows handed over before the failure)", out.Imported)
	}
	if len(progress) != 1 || progress[0] != 2 {
		t.Errorf("progress=%v, want [2]", progress)
	}
}

type failingSource struct {
	MemorySource
	emit int
}

func (s failingSource) Rows(ctx context.Context, out chan<- *records.Row, onErr func(int, error)) error {
	head := MemorySource{Headers: s.Headers, Data: s.Data[:s.emit]}
	if err := head.Rows(ctx, out, onErr); err != nil {
		return err
	}
	return errors.New("stream truncated")
}

func TestRun_SourceFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	imp := &Importer{Repo: repo}

	out, err := imp.Run(context.Background(), Options{
		Source:      failingSource{MemorySource: memSource(), emit: 3},
		Table:       "products",
		CreateTable: true,
		BatchSize:   2,
	})
	if err == nil || !strings.Contains(err.Error(), "stream truncated") {
		t.Fatalf("err = %v, want source failure", err)
	}
	if repo.loader.rollbacks != 1 || repo.loader.commits != 0 {
		t.Errorf("rollbacks=%d commits=%d, want 1 and 0", repo.loader.rollbacks, repo.loader.commits)
	}
	if out.Imported != 2 {
		t.Errorf("Imported=%d, want 2 (one full batch before the failure)", out.Imported)
	}
}

func TestRun_CommitFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{loader: &fakeLoader{commitErr: errors.New("connection reset")}}
	imp := &Importer{Repo: repo}

	_, err := imp.Run(context.Background(), Options{
		Source:      memSource(),
		Table:       "products",
		CreateTable: true,
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("err = %v, want commit failure", err)
	}
}

func TestRun_EmptySource(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	imp := &Importer{Repo: repo}

	called := false
	out, err := imp.Run(context.Background(), Options{
		Source:      MemorySource{Headers: []string{"id", "name"}},
		Table:       "empty",
		CreateTable: true,
		Progress:    func(int) { called = true },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Imported != 0 || out.ErrorCount != 0 {
		t.Errorf("Imported=%d ErrorCount=%d, want zeros", out.Imported, out.ErrorCount)
	}
	if called {
		t.Error("progress called with no batches")
	}
	if repo.loader.commits != 1 {
		t.Errorf("commits=%d, want 1 (empty import still commits)", repo.loader.commits)
	}
	if !out.TableCreated {
		t.Error("schema-only create skipped for empty source")
	}
}
