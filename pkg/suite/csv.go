package suite

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var csvLocks sync.Map // path -> *sync.Mutex

func lockFor(path string) *sync.Mutex {
	mu, _ := csvLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// AppendCSV appends row to file in OutDir, writing header first when the file is new.
func (s *State) AppendCSV(file string, header, row []string) string {
	path := filepath.Join(s.OutDir(), file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.Warnf("create %s: %v", filepath.Dir(path), err)
	}
	if err := AppendCSV(path, header, row); err != nil {
		s.Warnf("append %s: %v", path, err)
	}
	return path
}

// AppendCSV appends one record to path, writing header if the file is empty.
func AppendCSV(path string, header, row []string) error {
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
