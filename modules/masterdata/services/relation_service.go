package services

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/text/language"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/eventbus"
)

type relationKey struct {
	group domain.DataGroupType
	lang  string
}

// RelationService answers "which master does this relation id point to"
// for a data group. Results are cached until a master changes.
type RelationService struct {
	reader  RelationQuerier
	masters *domain.RelationMasters

	mu    sync.Mutex
	cache map[relationKey][]domain.RelationRow
}

// NewRelationService subscribes to bus so inserted masters drop the cache.
func NewRelationService(reader RelationQuerier, masters *domain.RelationMasters, bus eventbus.EventBus) *RelationService {
	if masters == nil {
		masters = domain.DefaultRelationMasters()
	}
	s := &RelationService{reader: reader, masters: masters, cache: map[relationKey][]domain.RelationRow{}}
	if bus != nil {
		bus.Subscribe(s.onMasterDataChanged)
	}
	return s
}

func (s *RelationService) onMasterDataChanged(ev *MasterDataChanged) {
	s.Invalidate()
}

func (s *RelationService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[relationKey][]domain.RelationRow{}
}

// Lookup returns the relation rows of group named in tag's language. A
// group without a relation chain yields no rows.
func (s *RelationService) Lookup(ctx context.Context, group domain.DataGroupType, tag language.Tag) ([]domain.RelationRow, error) {
	rm := s.masters.Get(group)
	if rm == nil {
		return nil, nil
	}
	key := relationKey{group: rm.Group, lang: langKey(tag)}
	s.mu.Lock()
	rows, ok := s.cache[key]
	s.mu.Unlock()
	recordRelationCache(ok)
	if ok {
		return rows, nil
	}

	rows, err := s.reader.QueryRelation(ctx, rm, tag)
	if err != nil {
		return nil, errors.Wrapf(err, "relation %s", rm.Group)
	}
	s.mu.Lock()
	s.cache[key] = rows
	s.mu.Unlock()
	return rows, nil
}

// Names maps relation ids of group to their display name.
func (s *RelationService) Names(ctx context.Context, group domain.DataGroupType, tag language.Tag) (map[int64]string, error) {
	rows, err := s.Lookup(ctx, group, tag)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Name
	}
	return out, nil
}

func langKey(tag language.Tag) string {
	if domain.PreferJapanese(tag) {
		return "ja"
	}
	return "en"
}
