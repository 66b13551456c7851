package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordDictionary_Predict(t *testing.T) {
	d := NewWordDictionary(nil)

	cases := map[string]struct {
		want string
		ok   bool
	}{
		"温度":        {"Temperature", true},
		"プレス工程":     {"Press Process", true},
		"第2号機":      {"No. 2 Unit", true},
		"温度A":       {"Temperature A", true},
		"未知の語":      {"", false},
		"   ":        {"", false},
		"Speed only": {"Speed only", true},
	}
	for in, tc := range cases {
		got, ok := d.Predict(in)
		assert.Equal(t, tc.ok, ok, in)
		assert.Equal(t, tc.want, got, in)
	}
}

func TestWordDictionary_LongestWordWins(t *testing.T) {
	d := NewWordDictionary(map[string]string{"温度計": "Thermometer", " ": "ignored"})
	got, ok := d.Predict("温度計")
	require.True(t, ok)
	assert.Equal(t, "Thermometer", got)

	var nilDict *WordDictionary
	_, ok = nilDict.Predict("温度")
	assert.False(t, ok)
}

func TestLoadWordDictionary(t *testing.T) {
	dir := t.TempDir()

	d, err := LoadWordDictionary("")
	require.NoError(t, err)
	got, _ := d.Predict("工場")
	assert.Equal(t, "Factory", got)

	path := filepath.Join(dir, "words.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nwords:\n  振動: Vibration\n  工場: Plant\n"), 0o600))
	d, err = LoadWordDictionary(path)
	require.NoError(t, err)
	got, ok := d.Predict("工場振動")
	require.True(t, ok)
	assert.Equal(t, "Plant Vibration", got)

	_, err = LoadWordDictionary(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, ErrDictionaryNotFound))

	future := filepath.Join(dir, "future.yaml")
	require.NoError(t, os.WriteFile(future, []byte("version: 2\nwords: {}\n"), 0o600))
	_, err = LoadWordDictionary(future)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("words: [unterminated\n"), 0o600))
	_, err = LoadWordDictionary(broken)
	assert.Error(t, err)
}
