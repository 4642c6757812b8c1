package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// documentPayload holds the document fields without their own column.
type documentPayload struct {
	Country          string                     `json:"country"`
	Locality         string                     `json:"locality,omitempty"`
	Subtype          string                     `json:"subtype,omitempty"`
	Actor            string                     `json:"actor,omitempty"`
	FrbrDate         string                     `json:"frbr_date"`
	Number           string                     `json:"number"`
	WorkFrbrURI      string                     `json:"work_frbr_uri"`
	Citation         string                     `json:"citation,omitempty"`
	AlternativeNames []string                   `json:"alternative_names,omitempty"`
	Nature           string                     `json:"nature,omitempty"`
	Jurisdiction     string                     `json:"jurisdiction,omitempty"`
	MatterType       string                     `json:"matter_type,omitempty"`
	Authors          []string                   `json:"authors,omitempty"`
	Labels           []string                   `json:"labels,omitempty"`
	Topics           []string                   `json:"topics,omitempty"`
	Blurb            string                     `json:"blurb,omitempty"`
	TOC              []domain.TocEntry          `json:"toc,omitempty"`
	SourceFile       *domain.SourceFile         `json:"source_file,omitempty"`
	Images           []domain.Image             `json:"images,omitempty"`
	Judgment         *domain.JudgmentDetails    `json:"judgment,omitempty"`
	Legislation      *domain.LegislationDetails `json:"legislation,omitempty"`
}

const documentColumns = `id, work_id, expression_frbr_uri, kind, doctype, language, date, title,
	published, most_recent, content_html, content_text, payload, created_at, updated_at`

// SaveDocument inserts or updates a document under an immediate write transaction.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document, prepare driven.PrepareFunc) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	next := func(courtCode string, year int) (int, error) {
		var max int
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(serial_number), 0) FROM documents
			WHERE court_code = ? AND substr(date, 1, 4) = ?
		`, strings.ToUpper(courtCode), fmt.Sprintf("%04d", year)).Scan(&max)
		if err != nil {
			return 0, fmt.Errorf("reading max serial: %w", err)
		}
		return max + 1, nil
	}
	if prepare != nil {
		if err := prepare(doc, next); err != nil {
			return nil, err
		}
	}
	if doc.WorkFrbrURI == "" || doc.ExpressionFrbrURI == "" {
		return nil, fmt.Errorf("%w: document has no identifiers", domain.ErrInvalidIdentifier)
	}

	var prev *domain.Document
	if doc.ID != 0 {
		prev, err = getDocument(ctx, tx, "id = ?", doc.ID)
	} else {
		prev, err = getDocument(ctx, tx, "expression_frbr_uri = ?", doc.ExpressionFrbrURI)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	work, err := ensureWork(ctx, tx, doc.WorkFrbrURI, doc.Title, false)
	if err != nil {
		return nil, err
	}
	doc.WorkID = work.ID

	now := time.Now().UTC()
	doc.UpdatedAt = now
	if prev != nil {
		doc.ID = prev.ID
		doc.CreatedAt = prev.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	payload, err := marshalJSON(payloadOf(doc))
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	courtCode, serial := "", 0
	if j := doc.Judgment; j != nil {
		courtCode, serial = strings.ToUpper(j.Court.Code), j.SerialNumber
	}

	if prev == nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (work_id, expression_frbr_uri, kind, doctype, language, date, title,
				court_code, serial_number, published, most_recent, content_html, content_text, payload,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
		`, doc.WorkID, doc.ExpressionFrbrURI, string(doc.Kind), doc.Doctype, doc.Language, doc.DateString(),
			doc.Title, courtCode, serial, boolToInt(doc.Published), doc.ContentHTML, doc.ContentText, payload,
			formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
		if err != nil {
			return nil, fmt.Errorf("inserting document: %w", err)
		}
		if doc.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading document id: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			UPDATE documents SET work_id = ?, expression_frbr_uri = ?, kind = ?, doctype = ?, language = ?,
				date = ?, title = ?, court_code = ?, serial_number = ?, published = ?, content_html = ?,
				content_text = ?, payload = ?, updated_at = ?
			WHERE id = ?
		`, doc.WorkID, doc.ExpressionFrbrURI, string(doc.Kind), doc.Doctype, doc.Language, doc.DateString(),
			doc.Title, courtCode, serial, boolToInt(doc.Published), doc.ContentHTML, doc.ContentText, payload,
			formatTime(doc.UpdatedAt), doc.ID)
		if err != nil {
			return nil, fmt.Errorf("updating document: %w", err)
		}
	}

	mostRecent, err := recomputeMostRecent(ctx, tx, doc.WorkID, doc.Language)
	if err != nil {
		return nil, err
	}
	doc.MostRecent = mostRecent == doc.ID
	if prev != nil && (prev.WorkID != doc.WorkID || prev.Language != doc.Language) {
		if _, err := recomputeMostRecent(ctx, tx, prev.WorkID, prev.Language); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return prev, nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	return getDocument(ctx, s.store.db, "id = ?", id)
}

// GetDocumentByExpressionURI retrieves a document by its expression FRBR URI.
func (s *documentStore) GetDocumentByExpressionURI(ctx context.Context, uri string) (*domain.Document, error) {
	return getDocument(ctx, s.store.db, "expression_frbr_uri = ?", uri)
}

// DeleteDocument removes a document and recomputes the most-recent flag of its siblings.
func (s *documentStore) DeleteDocument(ctx context.Context, id int64) (*domain.Document, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	doc, err := getDocument(ctx, tx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("deleting document: %w", err)
	}
	if _, err := recomputeMostRecent(ctx, tx, doc.WorkID, doc.Language); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return doc, nil
}

// ListDocuments returns documents matching the filter, ordered by ID.
func (s *documentStore) ListDocuments(ctx context.Context, filter driven.DocumentFilter) ([]domain.Document, error) {
	var where []string
	var args []any
	if filter.MostRecentOnly {
		where = append(where, "most_recent = 1")
	}
	if len(filter.WorkIDs) > 0 {
		marks := make([]string, len(filter.WorkIDs))
		for i, id := range filter.WorkIDs {
			marks[i] = "?"
			args = append(args, id)
		}
		where = append(where, "work_id IN ("+strings.Join(marks, ",")+")")
	}
	if filter.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, filter.AfterID)
	}

	query := "SELECT " + documentColumns + " FROM documents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return queryDocuments(ctx, s.store.db, query, args...)
}

// ListExpressionURIs returns the expression URIs of all local documents.
func (s *documentStore) ListExpressionURIs(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT expression_frbr_uri FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying expression uris: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scanning expression uri: %w", err)
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

// SiblingDocuments returns documents of the same Work and language.
func (s *documentStore) SiblingDocuments(ctx context.Context, workID int64, language string) ([]domain.Document, error) {
	return queryDocuments(ctx, s.store.db,
		"SELECT "+documentColumns+" FROM documents WHERE work_id = ? AND language = ? ORDER BY date, id",
		workID, language)
}

// GetWork retrieves a work by ID.
func (s *documentStore) GetWork(ctx context.Context, id int64) (*domain.Work, error) {
	return getWork(ctx, s.store.db, "id = ?", id)
}

// GetWorkByURI retrieves a work by its FRBR URI.
func (s *documentStore) GetWorkByURI(ctx context.Context, uri string) (*domain.Work, error) {
	return getWork(ctx, s.store.db, "frbr_uri = ?", uri)
}

// EnsureWork returns the work for uri, creating a stub when missing.
func (s *documentStore) EnsureWork(ctx context.Context, uri, title string) (*domain.Work, error) {
	return ensureWork(ctx, s.store.db, uri, title, true)
}

// ListWorks returns all works.
func (s *documentStore) ListWorks(ctx context.Context) ([]domain.Work, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+workColumns+" FROM works ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying works: %w", err)
	}
	defer rows.Close()

	var works []domain.Work
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, *w)
	}
	return works, rows.Err()
}

// UpdateWorkLanguages recomputes Work.Languages from its documents.
func (s *documentStore) UpdateWorkLanguages(ctx context.Context, workID int64) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT DISTINCT language FROM documents WHERE work_id = ?", workID)
	if err != nil {
		return nil, fmt.Errorf("querying languages: %w", err)
	}
	var langs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning language: %w", err)
		}
		langs = append(langs, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	langs = domain.SortedLanguages(langs)
	encoded, err := marshalJSON(langs)
	if err != nil {
		return nil, err
	}
	res, err := s.store.db.ExecContext(ctx, "UPDATE works SET languages = ?, updated_at = ? WHERE id = ?",
		encoded, formatTime(time.Now()), workID)
	if err != nil {
		return nil, fmt.Errorf("updating work languages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}
	return langs, nil
}

// ReplaceRelationships replaces the relationships whose subject is subjectURI.
func (s *documentStore) ReplaceRelationships(ctx context.Context, subjectURI string, rels []domain.Relationship) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM relationships WHERE subject_work_uri = ?", subjectURI); err != nil {
		return fmt.Errorf("clearing relationships: %w", err)
	}
	for _, r := range rels {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relationships (subject_work_uri, object_work_uri, predicate) VALUES (?, ?, ?)
		`, subjectURI, r.ObjectWorkURI, string(r.Predicate)); err != nil {
			return fmt.Errorf("saving relationship: %w", err)
		}
	}
	return tx.Commit()
}

// ListRelationships returns relationships where the work is subject or object.
func (s *documentStore) ListRelationships(ctx context.Context, workURI string) ([]domain.Relationship, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT subject_work_uri, object_work_uri, predicate FROM relationships
		WHERE subject_work_uri = ? OR object_work_uri = ?
		ORDER BY subject_work_uri, object_work_uri, predicate
	`, workURI, workURI)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var rels []domain.Relationship
	for rows.Next() {
		var r domain.Relationship
		var p string
		if err := rows.Scan(&r.SubjectWorkURI, &r.ObjectWorkURI, &p); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		r.Predicate = domain.Predicate(p)
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// SaveRatification stores a ratification, replacing its country list.
func (s *documentStore) SaveRatification(ctx context.Context, r *domain.Ratification) error {
	countries, err := marshalJSON(r.Countries)
	if err != nil {
		return fmt.Errorf("marshalling countries: %w", err)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO ratifications (work_uri, countries, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(work_uri) DO UPDATE SET countries = excluded.countries, updated_at = excluded.updated_at
	`, r.WorkURI, countries, formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving ratification: %w", err)
	}
	return nil
}

// GetRatification retrieves a ratification by work URI.
func (s *documentStore) GetRatification(ctx context.Context, workURI string) (*domain.Ratification, error) {
	var r domain.Ratification
	var countries, updated string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT work_uri, countries, updated_at FROM ratifications WHERE work_uri = ?", workURI,
	).Scan(&r.WorkURI, &countries, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ratification: %w", err)
	}
	if err := json.Unmarshal([]byte(countries), &r.Countries); err != nil {
		return nil, fmt.Errorf("unmarshalling countries: %w", err)
	}
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

// SaveTopics upserts taxonomy topics.
func (s *documentStore) SaveTopics(ctx context.Context, topics []domain.Topic) error {
	for _, t := range topics {
		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO topics (slug, name) VALUES (?, ?)
			ON CONFLICT(slug) DO UPDATE SET name = excluded.name
		`, t.Slug, t.Name)
		if err != nil {
			return fmt.Errorf("saving topic %s: %w", t.Slug, err)
		}
	}
	return nil
}

func payloadOf(d *domain.Document) documentPayload {
	return documentPayload{
		Country:          d.Country,
		Locality:         d.Locality,
		Subtype:          d.Subtype,
		Actor:            d.Actor,
		FrbrDate:         d.FrbrDate,
		Number:           d.Number,
		WorkFrbrURI:      d.WorkFrbrURI,
		Citation:         d.Citation,
		AlternativeNames: d.AlternativeNames,
		Nature:           d.Nature,
		Jurisdiction:     d.Jurisdiction,
		MatterType:       d.MatterType,
		Authors:          d.Authors,
		Labels:           d.Labels,
		Topics:           d.Topics,
		Blurb:            d.Blurb,
		TOC:              d.TOC,
		SourceFile:       d.SourceFile,
		Images:           d.Images,
		Judgment:         d.Judgment,
		Legislation:      d.Legislation,
	}
}

func (p documentPayload) apply(d *domain.Document) {
	d.Country = p.Country
	d.Locality = p.Locality
	d.Subtype = p.Subtype
	d.Actor = p.Actor
	d.FrbrDate = p.FrbrDate
	d.Number = p.Number
	d.WorkFrbrURI = p.WorkFrbrURI
	d.Citation = p.Citation
	d.AlternativeNames = p.AlternativeNames
	d.Nature = p.Nature
	d.Jurisdiction = p.Jurisdiction
	d.MatterType = p.MatterType
	d.Authors = p.Authors
	d.Labels = p.Labels
	d.Topics = p.Topics
	d.Blurb = p.Blurb
	d.TOC = p.TOC
	d.SourceFile = p.SourceFile
	d.Images = p.Images
	d.Judgment = p.Judgment
	d.Legislation = p.Legislation
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var kind, date, payload, created, updated string
	var published, mostRecent int
	err := row.Scan(&d.ID, &d.WorkID, &d.ExpressionFrbrURI, &kind, &d.Doctype, &d.Language, &date, &d.Title,
		&published, &mostRecent, &d.ContentHTML, &d.ContentText, &payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	var p documentPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("unmarshalling document payload: %w", err)
	}
	p.apply(&d)

	d.Kind = domain.Kind(kind)
	if date != "" {
		d.Date, _ = time.Parse(domain.DateLayout, date)
	}
	d.Published = published == 1
	d.MostRecent = mostRecent == 1
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	return &d, nil
}

func getDocument(ctx context.Context, q querier, where string, arg any) (*domain.Document, error) {
	row := q.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE "+where, arg)
	return scanDocument(row)
}

func queryDocuments(ctx context.Context, q querier, query string, args ...any) ([]domain.Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// recomputeMostRecent flags the latest expression of (work, language) and
// clears the rest. Returns the flagged ID.
func recomputeMostRecent(ctx context.Context, q querier, workID int64, language string) (int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, date FROM documents WHERE work_id = ? AND language = ?", workID, language)
	if err != nil {
		return 0, fmt.Errorf("querying siblings: %w", err)
	}
	var siblings []domain.Document
	for rows.Next() {
		var d domain.Document
		var date string
		if err := rows.Scan(&d.ID, &date); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning sibling: %w", err)
		}
		d.Date, _ = time.Parse(domain.DateLayout, date)
		siblings = append(siblings, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	winner := domain.MostRecentID(siblings)
	_, err = q.ExecContext(ctx, `
		UPDATE documents SET most_recent = CASE WHEN id = ? THEN 1 ELSE 0 END
		WHERE work_id = ? AND language = ?
	`, winner, workID, language)
	if err != nil {
		return 0, fmt.Errorf("updating most recent: %w", err)
	}
	return winner, nil
}

const workColumns = `id, frbr_uri, title, languages, stub, pagerank, pagerank_normalized,
	n_citing_works_normalized, authority_score, created_at, updated_at`

func scanWork(row rowScanner) (*domain.Work, error) {
	var w domain.Work
	var langs, created, updated string
	var stub int
	err := row.Scan(&w.ID, &w.FrbrURI, &w.Title, &langs, &stub, &w.Pagerank, &w.PagerankNormalized,
		&w.NCitingWorksNormalized, &w.AuthorityScore, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work: %w", err)
	}
	w.Languages = unmarshalStrings(langs)
	w.Stub = stub == 1
	w.CreatedAt = parseTime(created)
	w.UpdatedAt = parseTime(updated)
	return &w, nil
}

func getWork(ctx context.Context, q querier, where string, arg any) (*domain.Work, error) {
	return scanWork(q.QueryRowContext(ctx, "SELECT "+workColumns+" FROM works WHERE "+where, arg))
}

// ensureWork returns the work for uri, creating it when missing. A stub is
// promoted to a real work when a document is saved against it.
func ensureWork(ctx context.Context, q querier, uri, title string, stub bool) (*domain.Work, error) {
	w, err := getWork(ctx, q, "frbr_uri = ?", uri)
	switch {
	case err == nil:
		if w.Stub && !stub {
			_, err := q.ExecContext(ctx, "UPDATE works SET stub = 0, title = ?, updated_at = ? WHERE id = ?",
				title, formatTime(time.Now()), w.ID)
			if err != nil {
				return nil, fmt.Errorf("promoting work stub: %w", err)
			}
			w.Stub, w.Title = false, title
		}
		return w, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if _, err := domain.ParseFrbrURI(uri); err != nil {
		return nil, err
	}
	now := formatTime(time.Now())
	res, err := q.ExecContext(ctx, `
		INSERT INTO works (frbr_uri, title, stub, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, uri, title, boolToInt(stub), now, now)
	if err != nil {
		return nil, fmt.Errorf("inserting work: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading work id: %w", err)
	}
	return getWork(ctx, q, "id = ?", id)
}
