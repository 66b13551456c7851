package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// MemoryStore keeps every table in process. Ids come from the same
// max-or-sequence rule as PostgresSequence.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*table.Table
	seq    map[string]int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: map[string]*table.Table{},
		seq:    map[string]int64{},
		now:    time.Now,
	}
}

func (s *MemoryStore) table(m domain.Model) *table.Table {
	t, ok := s.tables[m.Table()]
	if !ok {
		t = table.New(m.ColumnNames()...)
		s.tables[m.Table()] = t
	}
	return t
}

// Snapshot returns a copy of the table contents.
func (s *MemoryStore) Snapshot(m domain.Model) *table.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table(m).Clone()
}

// SequenceValue is the last id handed out for m.
func (s *MemoryStore) SequenceValue(m domain.Model) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq[m.Table()]
}

func matches(m domain.Model, t *table.Table, i int, f domain.Filter) (bool, error) {
	for c, values := range f {
		col, ok := m.Column(c)
		if !ok {
			return false, errors.Wrapf(ErrUnknownColumn, "%s.%s", m.Table(), c)
		}
		cell := table.KeyOf(t.Get(i, c))
		hit := false
		for _, v := range values {
			cv, err := domain.Coerce(col.Type, v)
			if err != nil {
				return false, err
			}
			if table.KeyOf(cv) == cell {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

func (s *MemoryStore) rowsMatching(m domain.Model, f domain.Filter) ([]int, error) {
	t := s.table(m)
	var idx []int
	for i := 0; i < t.Len(); i++ {
		ok, err := matches(m, t, i, f)
		if err != nil {
			return nil, err
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func (s *MemoryStore) Select(_ context.Context, m domain.Model, f domain.Filter) (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.rowsMatching(m, f)
	if err != nil {
		return nil, err
	}
	return s.table(m).Take(idx).SortBy(domain.ColID), nil
}

func (s *MemoryStore) Insert(_ context.Context, m domain.Model, rows *table.Table) (int, error) {
	if rows.Len() == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(m)
	cols := insertColumns(m, rows)
	pending := make([]map[string]any, rows.Len())
	for i := range pending {
		r := make(map[string]any, len(cols)+1)
		for _, c := range cols {
			col, _ := m.Column(c)
			v, err := domain.Coerce(col.Type, rows.Get(i, c))
			if err != nil {
				return 0, errors.Wrapf(err, "insert %s row %d", m.Table(), i)
			}
			r[c] = v
		}
		pending[i] = r
	}

	if err := s.checkUnique(m, t, pending); err != nil {
		return 0, err
	}
	next := max(s.seq[m.Table()], maxID(t))
	for _, r := range pending {
		if r[domain.ColID] == nil {
			next++
			r[domain.ColID] = next
			s.seq[m.Table()] = next
		}
		t.Append(r)
	}
	return len(pending), nil
}

// checkUnique mirrors the unique constraints of the schema so tests catch
// duplicate masters.
func (s *MemoryStore) checkUnique(m domain.Model, t *table.Table, pending []map[string]any) error {
	key := m.UniqueKey()
	if len(key) == 0 || (len(key) == 1 && key[0] == domain.ColID) {
		return nil
	}
	if sc, ok := m.(domain.DataSourceScoped); ok {
		key = append(key, sc.DataSourceColumn())
	}
	seen := t.Index(key, nil)
	batch := table.FromMaps(m.ColumnNames(), pending)
	for i := 0; i < batch.Len(); i++ {
		k := batch.Key(i, key, nil)
		if _, dup := seen[k]; dup {
			return errors.Errorf("insert %s: duplicate key %v", m.Table(), key)
		}
		seen[k] = i
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, m domain.Model, id int64, values map[string]any) error {
	_, err := s.UpdateWhere(ctx, m, domain.Eq(domain.ColID, id), values)
	return err
}

func (s *MemoryStore) UpdateWhere(_ context.Context, m domain.Model, f domain.Filter, values map[string]any) (int, error) {
	if len(f) == 0 {
		return 0, errors.Wrapf(ErrEmptyFilter, "update %s", m.Table())
	}
	coerced := make(map[string]any, len(values)+1)
	for c, v := range values {
		col, ok := m.Column(c)
		if !ok {
			return 0, errors.Wrapf(ErrUnknownColumn, "%s.%s", m.Table(), c)
		}
		cv, err := domain.Coerce(col.Type, v)
		if err != nil {
			return 0, err
		}
		coerced[c] = cv
	}
	if _, ok := m.Column(domain.ColUpdatedAt); ok {
		if _, given := coerced[domain.ColUpdatedAt]; !given {
			coerced[domain.ColUpdatedAt] = s.now()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.rowsMatching(m, f)
	if err != nil {
		return 0, err
	}
	t := s.table(m)
	for _, i := range idx {
		for c, v := range coerced {
			if c == domain.ColID {
				continue
			}
			t.Set(i, c, v)
		}
	}
	return len(idx), nil
}

func (s *MemoryStore) Delete(_ context.Context, m domain.Model, f domain.Filter) (int, error) {
	if len(f) == 0 {
		return 0, errors.Wrapf(ErrEmptyFilter, "delete %s", m.Table())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.rowsMatching(m, f)
	if err != nil {
		return 0, err
	}
	drop := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		drop[i] = struct{}{}
	}
	t := s.table(m)
	s.tables[m.Table()] = t.Filter(func(i int) bool {
		_, gone := drop[i]
		return !gone
	})
	return len(idx), nil
}

func (s *MemoryStore) NextIDs(_ context.Context, m domain.Model, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := allocate(maxID(s.table(m)), s.seq[m.Table()], floorOf(m.Table()), n)
	s.seq[m.Table()] = ids[len(ids)-1]
	return ids, nil
}

func (s *MemoryStore) DummyIDs(_ context.Context, m domain.Model) (map[int64]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64]struct{}{}
	for _, v := range s.table(m).Column(domain.ColID) {
		if id, ok := table.AsInt64(v); ok && id <= 0 {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func maxID(t *table.Table) int64 {
	var out int64
	for _, v := range t.Column(domain.ColID) {
		if id, ok := table.AsInt64(v); ok && id > out {
			out = id
		}
	}
	return out
}
