package services

import (
	"os"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
)

var ErrDictionaryNotFound = errors.New("word dictionary not found")

type dictionaryFile struct {
	Version int               `yaml:"version"`
	Words   map[string]string `yaml:"words"`
}

// WordDictionary predicts English names for Japanese ones by replacing
// known words, longest first.
type WordDictionary struct {
	words map[string]string
	order []string
}

var defaultWords = map[string]string{
	"工場":   "Factory",
	"工程":   "Process",
	"設備":   "Equipment",
	"ライン":  "Line",
	"拠点":   "Location",
	"部門":   "Department",
	"製品":   "Product",
	"部品":   "Part",
	"温度":   "Temperature",
	"圧力":   "Pressure",
	"電流":   "Current",
	"電圧":   "Voltage",
	"速度":   "Speed",
	"時間":   "Time",
	"外注":   "Outsource",
	"組立":   "Assembly",
	"検査":   "Inspection",
	"溶接":   "Welding",
	"塗装":   "Painting",
	"プレス":  "Press",
	"第":    "No.",
	"号機":   "Unit",
	"ステーション": "Station",
}

func NewWordDictionary(words map[string]string) *WordDictionary {
	d := &WordDictionary{words: make(map[string]string, len(defaultWords)+len(words))}
	for k, v := range defaultWords {
		d.words[k] = v
	}
	for k, v := range words {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		d.words[k] = strings.TrimSpace(v)
	}
	d.order = make([]string, 0, len(d.words))
	for k := range d.words {
		d.order = append(d.order, k)
	}
	sort.Slice(d.order, func(i, j int) bool {
		if len(d.order[i]) != len(d.order[j]) {
			return len(d.order[i]) > len(d.order[j])
		}
		return d.order[i] < d.order[j]
	})
	return d
}

// LoadWordDictionary reads a YAML file with a "words" map on top of the
// built-in words. An empty path yields the built-in dictionary.
func LoadWordDictionary(path string) (*WordDictionary, error) {
	if strings.TrimSpace(path) == "" {
		return NewWordDictionary(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrDictionaryNotFound, path)
		}
		return nil, err
	}
	var file dictionaryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if file.Version > 1 {
		return nil, errors.Errorf("unsupported word dictionary version: %d", file.Version)
	}
	return NewWordDictionary(file.Words), nil
}

// Predict translates s. It reports false when Japanese text remains.
func (d *WordDictionary) Predict(s string) (string, bool) {
	if d == nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	out := s
	for _, w := range d.order {
		if strings.Contains(out, w) {
			out = strings.ReplaceAll(out, w, " "+d.words[w]+" ")
		}
	}
	out = strings.Join(strings.Fields(out), " ")
	if out == "" || domain.IsJapanese(out) {
		return "", false
	}
	return out, true
}
