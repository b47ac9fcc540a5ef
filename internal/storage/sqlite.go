package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/mendeley/internal/mendeley"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			doc_type TEXT,
			source TEXT,
			year INTEGER,
			doi TEXT,
			bib_key TEXT NOT NULL,
			first_author TEXT,
			file_attached INTEGER NOT NULL DEFAULT 0,
			raw_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_doi ON documents(doi) WHERE doi IS NOT NULL AND doi != '';
		CREATE INDEX IF NOT EXISTS idx_documents_key ON documents(bib_key);

		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			id,
			title,
			abstract,
			authors_text,
			tags_text,
			year
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the database and rebuilds it from a JSONL
// snapshot, binding each record with binder.
func (d *DB) RebuildFromJSONL(jsonlPath string, binder *mendeley.Binder) (int, error) {
	records, err := ReadRecords(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	docs, err := binder.Documents(records)
	if err != nil {
		return 0, err
	}
	return d.Rebuild(docs)
}

// Rebuild replaces the database contents with docs in one transaction.
func (d *DB) Rebuild(docs []*mendeley.Document) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM documents"); err != nil {
		return 0, fmt.Errorf("clearing documents table: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM documents_fts"); err != nil {
		return 0, fmt.Errorf("clearing documents_fts table: %w", err)
	}

	docStmt, err := tx.Prepare(`
		INSERT INTO documents (
			id, title, doc_type, source, year, doi,
			bib_key, first_author, file_attached, raw_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing documents insert: %w", err)
	}
	defer docStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO documents_fts (id, title, abstract, authors_text, tags_text, year)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, doc := range docs {
		raw, err := json.Marshal(doc.Raw)
		if err != nil {
			return 0, fmt.Errorf("marshaling record %s: %w", doc.ID, err)
		}

		_, err = docStmt.Exec(
			doc.ID, doc.Title, nullableStringValue(doc.Type), nullableStringValue(doc.Source),
			nullableYear(doc.Year), nullableStringValue(doc.DOI()),
			doc.Key(), nullableStringValue(doc.FirstAuthorSurname()), doc.FileAttached, string(raw),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}

		year := ""
		if doc.Year > 0 {
			year = strconv.Itoa(doc.Year)
		}
		_, err = ftsStmt.Exec(doc.ID, doc.Title, doc.Abstract, formatAuthorsText(doc), strings.Join(doc.Tags, " "), year)
		if err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(docs), nil
}

// formatAuthorsText creates a searchable text representation of authors.
func formatAuthorsText(doc *mendeley.Document) string {
	names := make([]string, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		names = append(names, a.FullName())
	}
	return strings.Join(names, ", ")
}

// GetByID returns the raw record of a document, or nil if absent.
func (d *DB) GetByID(id string) (mendeley.RawRecord, error) {
	row := d.db.QueryRow(`SELECT raw_json FROM documents WHERE id = ?`, id)
	return scanRecord(row)
}

// FindByDOI returns the raw records carrying a DOI, ordered by id.
func (d *DB) FindByDOI(doi string) ([]mendeley.RawRecord, error) {
	rows, err := d.db.Query(`SELECT raw_json FROM documents WHERE lower(doi) = lower(?) ORDER BY id`, doi)
	if err != nil {
		return nil, fmt.Errorf("finding DOI: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search performs a full-text search and returns matching records ordered
// by relevance.
func (d *DB) Search(query string, limit int) ([]mendeley.RawRecord, error) {
	return d.SearchWithFilters(SearchFilters{Keyword: query}, limit)
}

// SearchFilters contains optional filters for SearchWithFilters. All set
// filters must hold.
type SearchFilters struct {
	Keyword  string   // across title, abstract, authors and tags
	Authors  []string // prefix match on author names, all required
	Title    string
	Tag      string
	YearFrom int // 0 = no minimum
	YearTo   int // 0 = no maximum
	Type     string
}

// SearchWithFilters performs a search with multiple optional filters.
func (d *DB) SearchWithFilters(filters SearchFilters, limit int) ([]mendeley.RawRecord, error) {
	var ftsTerms []string
	var args []any

	if filters.Keyword != "" {
		ftsTerms = append(ftsTerms, prepareFTSQuery(filters.Keyword))
	}
	if filters.Title != "" {
		ftsTerms = append(ftsTerms, "title:"+prepareFTSQuery(filters.Title))
	}
	if filters.Tag != "" {
		ftsTerms = append(ftsTerms, "tags_text:"+prepareFTSQuery(filters.Tag))
	}
	for _, author := range filters.Authors {
		if q := prepareAuthorQuery(author); q != "" {
			ftsTerms = append(ftsTerms, "authors_text:"+q)
		}
	}

	var query string
	if len(ftsTerms) > 0 {
		query = `SELECT d.raw_json
			FROM documents d
			JOIN (SELECT id, rank FROM documents_fts WHERE documents_fts MATCH ?) f ON f.id = d.id
			WHERE 1=1`
		args = append(args, strings.Join(ftsTerms, " AND "))
	} else {
		query = `SELECT d.raw_json FROM documents d WHERE 1=1`
	}

	if filters.YearFrom > 0 {
		query += " AND d.year >= ?"
		args = append(args, filters.YearFrom)
	}
	if filters.YearTo > 0 {
		query += " AND d.year <= ?"
		args = append(args, filters.YearTo)
	}
	if filters.Type != "" {
		query += " AND d.doc_type = ?"
		args = append(args, filters.Type)
	}

	if len(ftsTerms) > 0 {
		query += " ORDER BY f.rank, d.id"
	} else {
		query += " ORDER BY d.id"
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListAll returns all records ordered by id, optionally limited.
func (d *DB) ListAll(limit int) ([]mendeley.RawRecord, error) {
	return d.SearchWithFilters(SearchFilters{}, limit)
}

// Count returns the total number of documents.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (mendeley.RawRecord, error) {
	var raw string
	if err := s.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec, err := decodeRecord([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing stored record: %w", err)
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]mendeley.RawRecord, error) {
	var out []mendeley.RawRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableYear(y int) sql.NullInt64 {
	if y <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(y), Valid: true}
}

// prepareAuthorQuery prepares an author name for FTS5 search with prefix matching.
// It adds a wildcard (*) so "Ash" matches "Ashish".
func prepareAuthorQuery(author string) string {
	parts := strings.Fields(strings.ReplaceAll(author, ",", " "))
	if len(parts) == 0 {
		return ""
	}

	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped := strings.ReplaceAll(part, "\"", "\"\"")
		terms = append(terms, "\""+escaped+"\"*")
	}

	// Every part of the name must appear.
	return "(" + strings.Join(terms, " AND ") + ")"
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,/'") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
