package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGeneratedKey(t *testing.T) {
	s := &Local{Root: t.TempDir()}

	key, size, sum, err := s.Put("", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, int64(5), size)

	want := sha256.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(want[:]), sum)

	path, err := s.Path(key)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalPutExplicitKeyAndDelete(t *testing.T) {
	s := &Local{Root: t.TempDir()}

	key, _, _, err := s.Put("docs/invoice.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "docs/invoice.pdf", key)

	require.NoError(t, s.Delete(key))
	path, _ := s.Path(key)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
