package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// maxLineSize bounds a single JSONL line. Workout results with many sets
// outgrow the scanner's default 64 KiB token.
const maxLineSize = 4 << 20

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped. A missing file reads as
// empty.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// jsonlFile returns the path of the JSONL file backing a table.
func jsonlFile(dataDir, name string) string {
	return filepath.Join(dataDir, name+".jsonl")
}

// jsonlTables lists every table persisted to JSONL, in load order.
func jsonlTables() []string {
	names := make([]string, 0, len(types.StandardTables)+4)
	for _, t := range types.StandardTables {
		names = append(names, string(t))
	}
	return append(names,
		types.SettingsTable,
		types.LogsTable,
		types.SessionTable,
		types.SessionRecordsTable,
	)
}

// initJSONLFiles creates an empty JSONL file for every table that has none.
func initJSONLFiles(dataDir string) error {
	for _, name := range jsonlTables() {
		path := jsonlFile(dataDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
		if err := writeJSONL(path, nil); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// persistTable rewrites the JSONL file of one table from its SQLite rows.
func persistTable(q querier, dataDir, name string) error {
	var (
		lines []json.RawMessage
		err   error
	)
	switch name {
	case types.SettingsTable:
		lines, err = settingLines(q)
	case types.LogsTable:
		lines, err = logLines(q)
	case types.SessionTable:
		lines, err = sessionLines(q)
	case types.SessionRecordsTable:
		lines, err = sessionRecordLines(q)
	default:
		t, perr := types.ParseTable(name)
		if perr != nil {
			return perr
		}
		lines, err = dataLines(q, fmt.Sprintf("SELECT data FROM %s ORDER BY rowid", sqlTable(t)))
	}
	if err != nil {
		return fmt.Errorf("reading %s for JSONL: %w", name, err)
	}
	return writeJSONL(jsonlFile(dataDir, name), lines)
}

// dataLines collects a single TEXT column of JSON documents.
func dataLines(q querier, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		lines = append(lines, json.RawMessage(data))
	}
	return lines, rows.Err()
}
