package writer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket", "capture.json")

	require.NoError(t, Append([]byte("{\"id\":1}\n"), path))
	require.NoError(t, Append([]byte("{\"id\":2}\n"), path))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"{\"id\":1}", "{\"id\":2}"}, lines)
}

func TestAppendAndReadCompressed(t *testing.T) {
	for _, ext := range CompressedExtensions {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "capture."+ext)
			require.NoError(t, Append([]byte("one\n"), path))
			require.NoError(t, Append([]byte("two\n"), path))

			// Each append closes its gzip member; readers must see both.
			lines, err := ReadLines(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"one", "two"}, lines)
		})
	}
}

func TestOpenRejectsUnknownExtension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "capture.exe"))
	assert.ErrorIs(t, err, ErrUnknownExtension)
}

func TestRecognised(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "a/b.json", want: true},
		{path: "a/b.twc", want: true},
		{path: "a/b.twzip", want: true},
		{path: "a/b.gzip", want: true},
		{path: "a/b.csv", want: false},
		{path: "a/b", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Recognised(tt.path))
		})
	}
}

func TestCrawlPath(t *testing.T) {
	now := time.Date(2019, 3, 13, 14, 5, 9, 0, time.UTC)
	path := CrawlPath("/data/output", "alice", "tl_", "1234", ".twc", now)
	assert.Equal(t, filepath.Join(
		"/data/output", "alice", "tl_2019-03-13_14-05-09_1234.twc",
	), path)
}
