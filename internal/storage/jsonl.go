// Package storage persists library snapshots as JSONL and SQLite.
//
// The JSONL snapshot holds the raw API records exactly as received and is the
// source of truth for offline use. The SQLite database is a derived,
// rebuildable projection that adds full-text search.
package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/mendeley/internal/mendeley"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
// Records carrying abstracts and notes can run long.
const MaxJSONLLineCapacity = 4 * 1024 * 1024

// ReadRecords reads raw records from a JSONL file. A missing file yields no
// records. Numbers are decoded as json.Number, as they are from the API.
func ReadRecords(path string) ([]mendeley.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	var records []mendeley.RawRecord
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := decodeRecord(line)
		if err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return records, nil
}

// WriteRecords replaces the JSONL file with records, one per line. The file
// is written to a temporary name and renamed, so readers never see a
// partial snapshot.
func WriteRecords(path string, records []mendeley.RawRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
		w.Write(data)
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// AppendRecord adds one record to the end of a JSONL file.
func AppendRecord(path string, rec mendeley.RawRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening snapshot for append: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func decodeRecord(data []byte) (mendeley.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec mendeley.RawRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
