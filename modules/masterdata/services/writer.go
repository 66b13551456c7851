package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

type WriteOptions struct {
	// DataSourceID is stamped on new rows of data-source scoped models.
	DataSourceID int64
	// SkipMergeWithDifferentDataSources restricts matching of scoped models
	// to rows of DataSourceID.
	SkipMergeWithDifferentDataSources bool
	// Where limits the write to the frame rows it accepts.
	Where func(i int) bool
}

// Writer reconciles candidate rows against a table: rows naming an existing
// entity get its id, the rest are inserted once.
type Writer struct {
	store    Store
	notifier *Notifier
	now      func() time.Time

	mu      sync.Mutex
	dummies map[string]map[int64]struct{}
}

func NewWriter(store Store, notifier *Notifier) *Writer {
	return &Writer{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		dummies:  map[string]map[int64]struct{}{},
	}
}

// ForgetDummyIDs drops the memoized placeholder ids.
func (w *Writer) ForgetDummyIDs() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dummies = map[string]map[int64]struct{}{}
}

func (w *Writer) dummyIDs(ctx context.Context, m domain.Model) (map[int64]struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ids, ok := w.dummies[m.Table()]; ok {
		return ids, nil
	}
	ids, err := w.store.DummyIDs(ctx, m)
	if err != nil {
		return nil, errors.Wrapf(err, "dummy ids of %s", m.Table())
	}
	w.dummies[m.Table()] = ids
	return ids, nil
}

// WriteMasterData resolves every frame row to a row of m, inserting the
// rows that match nothing, and writes the resolved id into the frame's
// foreign id column. It returns the number of inserted rows.
func (w *Writer) WriteMasterData(ctx context.Context, frame *table.Table, m domain.Model, opts WriteOptions) (int, error) {
	ctx, span := tracer.Start(ctx, "nayose.write", trace.WithAttributes(attribute.String("table", m.Table())))
	defer span.End()

	fk := m.ForeignIDColumn()
	if fk != "" && m.Kind() != domain.KindMapping {
		frame.AddColumn(fk, nil)
	}

	cand, origin, err := candidates(frame, m, opts)
	if err != nil {
		return 0, err
	}
	if cand.Empty() {
		return 0, nil
	}

	key := m.UniqueKey()
	uniq := cand.DropDuplicates(key, nil)

	existing, err := w.existing(ctx, m, cand, opts)
	if err != nil {
		return 0, err
	}

	tiers := matchTiers(m)
	resolved := make([]any, uniq.Len())
	matched := make([]bool, uniq.Len())
	matchedTotal := 0
	for _, t := range tiers {
		idx := t.index(existing)
		n := 0
		for i := range matched {
			if matched[i] {
				continue
			}
			k, ok := t.key(uniq, i)
			if !ok {
				continue
			}
			if j, hit := idx[k]; hit {
				matched[i] = true
				resolved[i] = existing.Get(j, domain.ColID)
				n++
			}
		}
		recordMatched(m.Table(), t.name, n)
		matchedTotal += n
	}

	fresh := make([]int, 0, len(matched))
	for i, ok := range matched {
		if !ok {
			fresh = append(fresh, i)
		}
	}
	leaders, alias := collapse(uniq, fresh, tiers)
	inserted, ids, err := w.insert(ctx, m, uniq, leaders, resolved)
	if err != nil {
		return 0, err
	}
	for r, leader := range alias {
		resolved[r] = resolved[leader]
	}

	if fk != "" && m.Kind() != domain.KindMapping {
		at := uniq.Index(key, nil)
		unresolved := 0
		for c := 0; c < cand.Len(); c++ {
			id := resolved[at[cand.Key(c, key, nil)]]
			if id == nil {
				unresolved++
				continue
			}
			frame.Set(origin[c], fk, id)
		}
		if unresolved > 0 {
			nayoseUnresolved.WithLabelValues(m.Table()).Add(float64(unresolved))
			logWithFields(ctx, logrus.WarnLevel, "nayose.write.unresolved", logrus.Fields{
				"table":      m.Table(),
				"unresolved": unresolved,
			})
		}
	}

	if err := w.notifier.Notify(ctx, m.Table(), ids); err != nil {
		return inserted, err
	}
	recordInserted(m.Table(), inserted)
	span.SetAttributes(attribute.Int("inserted", inserted))
	logWithFields(ctx, logrus.InfoLevel, "nayose.write", logrus.Fields{
		"table":      m.Table(),
		"candidates": uniq.Len(),
		"matched":    matchedTotal,
		"inserted":   inserted,
	})
	return inserted, nil
}

// writableColumns are the columns a candidate row may carry.
func writableColumns(m domain.Model) []string {
	out := make([]string, 0, len(m.Columns()))
	for _, c := range m.ColumnNames() {
		switch c {
		case domain.ColID, domain.ColCreatedAt, domain.ColUpdatedAt:
			continue
		}
		out = append(out, c)
	}
	return out
}

// candidates projects the accepted frame rows onto m. origin[i] is the
// frame row of candidate i.
func candidates(frame *table.Table, m domain.Model, opts WriteOptions) (*table.Table, []int, error) {
	cols := writableColumns(m)
	identity := domain.IdentityColumns(m)
	cand := table.New(cols...)
	origin := make([]int, 0, frame.Len())

	for i := 0; i < frame.Len(); i++ {
		if opts.Where != nil && !opts.Where(i) {
			continue
		}
		r := make(map[string]any, len(cols))
		for _, c := range cols {
			col, _ := m.Column(c)
			v := frame.Get(i, c)
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				v = nil
			}
			v, err := domain.Coerce(col.Type, v)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "%s row %d", m.Table(), i)
			}
			r[c] = v
		}
		if s, ok := m.(domain.Signed); ok {
			col, def := s.Sign()
			if r[col] == nil {
				r[col] = def
			}
		}
		if n, ok := m.(domain.Named); ok {
			nc := n.Names()
			if nc.Sys != "" && r[nc.Sys] == nil {
				r[nc.Sys] = domain.SystemName(asText(r[nc.EN]), asText(r[nc.Local]), asText(r[nc.JP]))
			}
		}
		if sc, ok := m.(domain.DataSourceScoped); ok && opts.DataSourceID != 0 && r[sc.DataSourceColumn()] == nil {
			r[sc.DataSourceColumn()] = opts.DataSourceID
		}
		if allNull(r, identity) {
			continue
		}
		cand.Append(r)
		origin = append(origin, i)
	}
	return cand, origin, nil
}

func allNull(r map[string]any, cols []string) bool {
	for _, c := range cols {
		if r[c] != nil {
			return false
		}
	}
	return true
}

func asText(v any) string {
	s, _ := table.AsString(v)
	return s
}

// existing loads the comparison set ordered by id, without placeholders.
func (w *Writer) existing(ctx context.Context, m domain.Model, cand *table.Table, opts WriteOptions) (*table.Table, error) {
	var f domain.Filter
	if sc, ok := m.(domain.DataSourceScoped); ok && opts.SkipMergeWithDifferentDataSources && opts.DataSourceID != 0 {
		f = domain.Eq(sc.DataSourceColumn(), opts.DataSourceID)
	}
	if m.Kind() == domain.KindMapping {
		f = domain.Filter{domain.ColDataTableID: distinct(cand.Column(domain.ColDataTableID))}
	}
	rows, err := w.store.Select(ctx, m, f)
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", m.Table())
	}
	dummies, err := w.dummyIDs(ctx, m)
	if err != nil {
		return nil, err
	}
	if len(dummies) > 0 {
		rows = rows.Filter(func(i int) bool {
			id, _ := table.AsInt64(rows.Get(i, domain.ColID))
			_, dummy := dummies[id]
			return !dummy
		})
	}
	return rows.SortBy(domain.ColID), nil
}

func distinct(values []any) []any {
	seen := map[string]struct{}{}
	out := make([]any, 0, len(values))
	for _, v := range values {
		k := table.KeyOf(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (w *Writer) insert(ctx context.Context, m domain.Model, uniq *table.Table, leaders []int, resolved []any) (int, []int64, error) {
	if len(leaders) == 0 {
		return 0, nil, nil
	}
	rows := uniq.Take(leaders)
	var ids []int64
	if m.Kind() == domain.KindMaster {
		var err error
		ids, err = w.store.NextIDs(ctx, m, len(leaders))
		if err != nil {
			return 0, nil, errors.Wrapf(err, "allocate %s ids", m.Table())
		}
		now := w.now().UTC()
		for k, leader := range leaders {
			rows.Set(k, domain.ColID, ids[k])
			rows.Set(k, domain.ColCreatedAt, now)
			rows.Set(k, domain.ColUpdatedAt, now)
			resolved[leader] = ids[k]
		}
	}
	n, err := w.store.Insert(ctx, m, rows)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "insert %s", m.Table())
	}
	return n, ids, nil
}
