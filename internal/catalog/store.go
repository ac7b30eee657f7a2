package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// store.go - JSON-персистентность коллекции
//
// Два файла в каталоге коллекций:
//   collections.json                    {"BASE/QUOTE": ["venue1", "venue2"], ...}
//   singularly_available_markets.json   {"BASE/QUOTE": "venue", ...}
//
// Отсутствие любого из файлов не ошибка: читатель откатывается
// на живое построение.

var storeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	collectionsFile = "collections.json"
	singletonsFile  = "singularly_available_markets.json"
)

// Store читает и пишет коллекцию в каталоге dir
type Store struct {
	dir string
}

// NewStore создаёт хранилище; каталог создаётся при первой записи
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load читает обе карты; found=false когда нет ни одного файла
func (s *Store) Load() (*Collection, bool, error) {
	c := NewCollection()

	foundSymbols, err := s.readFile(collectionsFile, &c.Symbols)
	if err != nil {
		return nil, false, err
	}
	foundSingles, err := s.readFile(singletonsFile, &c.Singletons)
	if err != nil {
		return nil, false, err
	}

	return c, foundSymbols || foundSingles, nil
}

// Save пишет обе карты атомарно через временные файлы
func (s *Store) Save(c *Collection) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create collections dir: %w", err)
	}
	if err := s.writeFile(collectionsFile, c.Symbols); err != nil {
		return err
	}
	return s.writeFile(singletonsFile, c.Singletons)
}

func (s *Store) readFile(name string, dst any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := storeJSON.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) writeFile(name string, src any) error {
	data, err := storeJSON.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
