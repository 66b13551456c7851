package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// CSVFiles maps each mapping target to its file inside a CSVSource dir.
var CSVFiles = map[domain.MappingTarget]string{
	domain.TargetFactoryMachine: "factory_machine.csv",
	domain.TargetPart:           "part.csv",
	domain.TargetProcessData:    "process_data.csv",
}

const defaultChunkSize = 5000

// CSVSource streams mapping batches from CSV files whose headers are data
// group names such as "LineName". Missing files are skipped.
type CSVSource struct {
	dir   string
	chunk int
}

func NewCSVSource(dir string, chunk int) *CSVSource {
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &CSVSource{dir: dir, chunk: chunk}
}

func (s *CSVSource) Stream(ctx context.Context, _ domain.DataTableConfig, fn func(Batch) error) error {
	targets := domain.MappingModels()
	for k, mm := range targets {
		path := filepath.Join(s.dir, CSVFiles[mm.Target()])
		err := s.streamFile(ctx, path, func(tb *table.Table, fraction float64) error {
			return fn(Batch{
				Frames:  map[domain.MappingTarget]*table.Table{mm.Target(): tb},
				Percent: 100 * (float64(k) + fraction) / float64(len(targets)),
			})
		})
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
	}
	return nil
}

func (s *CSVSource) streamFile(ctx context.Context, path string, emit func(*table.Table, float64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	r := csv.NewReader(stripUTF8BOM(bufio.NewReader(f)))
	r.FieldsPerRecord = -1
	header, err := readHeader(r)
	if err != nil {
		return err
	}
	columns := semanticColumns(header)

	fraction := func() float64 {
		if info.Size() == 0 {
			return 1
		}
		return min(1, float64(r.InputOffset())/float64(info.Size()))
	}
	batch := table.New(columns...)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		values := make([]any, len(columns))
		for j := range columns {
			if j < len(rec) {
				if v := strings.TrimSpace(rec[j]); v != "" {
					values[j] = v
				}
			}
		}
		batch.AppendValues(values...)
		if batch.Len() >= s.chunk {
			if err := emit(batch, fraction()); err != nil {
				return err
			}
			batch = table.New(columns...)
		}
	}
	if !batch.Empty() {
		return emit(batch, 1)
	}
	return nil
}

// semanticColumns canonicalizes data group headers ("line_name", "20") to
// their enumerant names. Other headers are kept.
func semanticColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := h
		if t, err := domain.ParseDataGroupType(strings.ReplaceAll(h, "_", "")); err == nil {
			name = t.String()
		}
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func readHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, errors.New("invalid header encoding")
		}
	}
	return h, nil
}
