package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSVSink writes each table of a workbook to <Dir>/<prefix>_<table>.csv.
type CSVSink struct {
	Dir   string
	Comma rune
}

func FileName(prefix, table string) string {
	return prefix + "_" + strings.ToLower(table) + ".csv"
}

// Write returns the paths written, in table order.
func (s CSVSink) Write(wb Workbook) ([]string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(wb.Tables))
	for _, t := range wb.Tables {
		p := filepath.Join(dir, FileName(wb.Prefix, t.Name))
		if err := s.writeFile(p, t); err != nil {
			return paths, fmt.Errorf("table %s: %w", t.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (s CSVSink) writeFile(path string, t Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return writeTable(f, t, s.Comma)
}

// WriteTable streams one table as comma separated CSV with a header row.
func WriteTable(w io.Writer, t Table) error {
	return writeTable(w, t, ',')
}

func writeTable(w io.Writer, t Table, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
