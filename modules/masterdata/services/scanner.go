package services

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/constants"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// Batch is one unit of ETL output: semantic-column frames per mapping and
// the overall progress after it.
type Batch struct {
	Frames  map[domain.MappingTarget]*table.Table
	Percent float64
}

// ETL streams the rows of a data table in batches.
type ETL interface {
	Stream(ctx context.Context, cfg domain.DataTableConfig, fn func(Batch) error) error
}

type ExportMode string

const (
	ExportAuto   ExportMode = ""
	ExportDirect ExportMode = "direct"
	ExportFile   ExportMode = "file"
)

type ScanOptions struct {
	SkipMergeWithDifferentDataSources bool
	// Mode overrides the data source's import mode.
	Mode ExportMode `validate:"omitempty,oneof=direct file"`
}

type ScanResult struct {
	DataTableID int64                        `json:"data_table_id"`
	RunID       string                       `json:"run_id"`
	Mode        ExportMode                   `json:"mode"`
	Batches     int                          `json:"batches"`
	Inserted    map[string]int               `json:"inserted"`
	MappingRows map[domain.MappingTarget]int `json:"mapping_rows"`
	Files       []string                     `json:"files,omitempty"`
}

// Scanner imports the masters referenced by one data table.
type Scanner struct {
	store    Store
	etl      ETL
	configs  ConfigLoader
	writer   *Writer
	notifier *Notifier
	exporter *Exporter
	catalog  *domain.Catalog
	dict     *WordDictionary
	tx       TxRunner
}

type ScannerOption func(*Scanner)

func WithNotifier(n *Notifier) ScannerOption   { return func(s *Scanner) { s.notifier = n } }
func WithExporter(e *Exporter) ScannerOption   { return func(s *Scanner) { s.exporter = e } }
func WithDictionary(d *WordDictionary) ScannerOption {
	return func(s *Scanner) { s.dict = d }
}
func WithCatalog(c *domain.Catalog) ScannerOption { return func(s *Scanner) { s.catalog = c } }

// WithTxRunner runs every batch and the finalization in its own unit of
// work.
func WithTxRunner(tx TxRunner) ScannerOption { return func(s *Scanner) { s.tx = tx } }

func NewScanner(store Store, etl ETL, configs ConfigLoader, opts ...ScannerOption) *Scanner {
	s := &Scanner{store: store, etl: etl, configs: configs}
	for _, o := range opts {
		o(s)
	}
	if s.catalog == nil {
		s.catalog = domain.DefaultCatalog()
	}
	if s.dict == nil {
		s.dict = NewWordDictionary(nil)
	}
	s.writer = NewWriter(store, s.notifier)
	return s
}

func (s *Scanner) Writer() *Writer { return s.writer }

// ScanMaster streams the data table, resolves its masters and stores the
// mapping rows either in the mapping tables or in nayose files. progress
// receives the completed percentage after every batch.
func (s *Scanner) ScanMaster(ctx context.Context, dataTableID int64, opts ScanOptions, progress func(float64)) (*ScanResult, error) {
	if err := constants.Validate.Struct(opts); err != nil {
		return nil, errors.Wrap(err, "invalid scan options")
	}
	runID := composables.UseRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = composables.WithRunID(ctx, runID)
	}
	ctx, span := tracer.Start(ctx, "nayose.scan", trace.WithAttributes(attribute.Int64("data_table_id", dataTableID)))
	defer span.End()
	start := time.Now()

	cfg, err := s.configs.LoadDataTableConfig(ctx, dataTableID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	mode := opts.Mode
	if mode == ExportAuto {
		mode = ExportFile
		if cfg.DataSource.IsDirectImport {
			mode = ExportDirect
		}
	}
	if mode == ExportFile && s.exporter == nil {
		return nil, errors.Errorf("data table %d exports files but no exporter is configured", dataTableID)
	}

	result := &ScanResult{
		DataTableID: dataTableID,
		RunID:       runID,
		Mode:        mode,
		Inserted:    map[string]int{},
		MappingRows: map[domain.MappingTarget]int{},
	}
	run := &scanRun{
		Scanner: s,
		cfg:     cfg,
		mode:    mode,
		result:  result,
		opts: WriteOptions{
			DataSourceID:                      cfg.DataSource.ID,
			SkipMergeWithDifferentDataSources: opts.SkipMergeWithDifferentDataSources,
		},
		exports:   map[domain.MappingTarget]*table.Table{},
		processes: map[int64]struct{}{},
	}
	s.writer.ForgetDummyIDs()

	err = s.etl.Stream(ctx, cfg, func(b Batch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.tx.run(ctx, func(ctx context.Context) error { return run.batch(ctx, b) }); err != nil {
			return err
		}
		result.Batches++
		s.report(ctx, progress, b.Percent)
		return nil
	})
	if err == nil {
		err = s.tx.run(ctx, run.finalize)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.SetStatus(codes.Error, err.Error())
	}
	nayoseScanDuration.WithLabelValues(string(mode), outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return result, err
	}
	s.report(ctx, progress, 100)
	logWithFields(ctx, logrus.InfoLevel, "nayose.scan.done", logrus.Fields{
		"data_table_id": dataTableID,
		"mode":          mode,
		"batches":       result.Batches,
		"inserted":      result.Inserted,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return result, nil
}

// report calls progress, logging instead of failing when it panics.
func (s *Scanner) report(ctx context.Context, progress func(float64), percent float64) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logWithFields(ctx, logrus.WarnLevel, "nayose.scan.progress_failed", logrus.Fields{
				"percent": percent,
				"panic":   r,
			})
		}
	}()
	progress(percent)
}

// scanRun is the state of one ScanMaster call.
type scanRun struct {
	*Scanner
	cfg       domain.DataTableConfig
	mode      ExportMode
	opts      WriteOptions
	result    *ScanResult
	exports   map[domain.MappingTarget]*table.Table
	processes map[int64]struct{}
}

func (r *scanRun) batch(ctx context.Context, b Batch) error {
	for _, mm := range domain.MappingModels() {
		frame := b.Frames[mm.Target()]
		if frame.Empty() {
			continue
		}
		if err := r.mapping(ctx, mm, frame.Clone()); err != nil {
			return errors.Wrapf(err, "%s batch", mm.Target())
		}
		nayoseBatches.WithLabelValues(string(mm.Target())).Inc()
	}
	return nil
}

func (r *scanRun) mapping(ctx context.Context, mm *domain.MappingModel, frame *table.Table) error {
	raw := toPhysical(frame, mm, r.cfg.ID)
	key := mm.UniqueKey()

	if r.mode == ExportDirect {
		existing, err := r.store.Select(ctx, mm, domain.Eq(domain.ColDataTableID, r.cfg.ID))
		if err != nil {
			return errors.Wrapf(err, "select %s", mm.Table())
		}
		frame = frame.AntiJoin(existing, key, nil)
		raw = frame.Select(raw.Columns()...)
		if frame.Empty() {
			return nil
		}
	}

	TransformFor(r.cfg.DataSource.Type)(mm.Target(), frame)

	c := newChain(r.writer, r.dict, r.cfg, r.opts)
	if err := c.run(ctx, mm.Target(), frame); err != nil {
		return err
	}
	for t, n := range c.inserted {
		r.result.Inserted[t] += n
	}
	for _, id := range int64Set(frame.Column("process_id")) {
		r.processes[id] = struct{}{}
	}

	for i := 0; i < frame.Len(); i++ {
		for _, col := range raw.Columns() {
			frame.Set(i, col, raw.Get(i, col))
		}
	}

	if r.mode == ExportFile {
		rows := frame.Select(mm.ColumnNames()...)
		r.exports[mm.Target()] = table.Concat(r.exports[mm.Target()], rows)
		r.result.MappingRows[mm.Target()] += rows.Len()
		return nil
	}
	n, err := r.writer.WriteMasterData(ctx, frame, mm, r.opts)
	if err != nil {
		return err
	}
	r.result.MappingRows[mm.Target()] += n
	return nil
}

// toPhysical copies semantic columns onto the mapping's t_* columns, turns
// blank cells into nulls and stamps the data table. It returns the raw t_*
// values so they can be restored after transforms.
func toPhysical(frame *table.Table, mm *domain.MappingModel, dataTableID int64) *table.Table {
	var cols []string
	for t, phys := range mm.PhysicalColumns() {
		if frame.Has(t.String()) {
			frame.Copy(t.String(), phys)
		} else {
			frame.AddColumn(phys, nil)
		}
		cols = append(cols, phys)
	}
	sort.Strings(cols)
	for i := 0; i < frame.Len(); i++ {
		for _, c := range cols {
			if s, ok := frame.Get(i, c).(string); ok {
				frame.Set(i, c, nullIfEmpty(strings.TrimSpace(s)))
			}
		}
		frame.Set(i, domain.ColDataTableID, dataTableID)
	}
	return frame.Select(cols...)
}

func (r *scanRun) finalize(ctx context.Context) error {
	processIDs := make([]int64, 0, len(r.processes))
	for id := range r.processes {
		processIDs = append(processIDs, id)
	}
	slices.Sort(processIDs)

	if r.mode == ExportDirect {
		n, err := GenerateDefaultFilters(ctx, r.writer, processIDs)
		if err != nil {
			return errors.Wrap(err, "default filters")
		}
		r.result.Inserted[domain.CfgFilter.Table()] += n
		n, err = AddRepresentativePlaceholders(ctx, r.writer, r.catalog, processIDs)
		if err != nil {
			return errors.Wrap(err, "representative placeholders")
		}
		r.result.Inserted[domain.MData.Table()] += n
		return nil
	}

	if _, err := ScanDataTypes(ctx, r.store, r.cfg, processIDs); err != nil {
		return errors.Wrap(err, "scan data types")
	}
	files, err := r.exporter.Export(ctx, r.cfg.ID, r.exports)
	if err != nil {
		return errors.Wrap(err, "export nayose files")
	}
	r.result.Files = files
	logWithFields(ctx, logrus.InfoLevel, "nayose.export.done", logrus.Fields{
		"data_table_id": r.cfg.ID,
		"files":         len(files),
	})
	return nil
}
