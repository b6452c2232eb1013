package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Store — коллаборатор бинарных блобов. Ядро трактует ключи как
// непрозрачные ссылки и содержимое не интерпретирует.
type Store interface {
	Put(key string, r io.Reader) (string, int64, string, error) // key, size, sha256
	Delete(key string) error
	Path(key string) (string, error) // локальный путь (для local-драйвера)
}

// Local кладёт блобы в файловую систему под Root.
type Local struct {
	Root string // например, "./uploads"
}

func (s *Local) ensureDir(p string) error {
	return os.MkdirAll(p, 0o755)
}

func (s *Local) Put(key string, r io.Reader) (string, int64, string, error) {
	if key == "" {
		now := time.Now().UTC()
		key = filepath.Join(
			fmt.Sprintf("%04d/%02d", now.Year(), int(now.Month())),
			uuid.NewString(),
		)
	}
	full := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := s.ensureDir(filepath.Dir(full)); err != nil {
		return "", 0, "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return "", 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		return "", 0, "", err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return key, n, sum, nil
}

func (s *Local) Delete(key string) error {
	return os.Remove(filepath.Join(s.Root, filepath.FromSlash(key)))
}

func (s *Local) Path(key string) (string, error) {
	return filepath.Join(s.Root, filepath.FromSlash(key)), nil
}
