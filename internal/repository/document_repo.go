package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteDocumentRepository implements DocumentRepository using SQLite.
type SQLiteDocumentRepository struct {
	db *sql.DB
}

// NewSQLiteDocumentRepository creates a new document repository.
func NewSQLiteDocumentRepository(db *sql.DB) *SQLiteDocumentRepository {
	return &SQLiteDocumentRepository{db: db}
}

const docColumns = `id, organization_id, user_file_name, blob_name, upload_date,
	uploaded_by, state, tag_ids, metadata, n_pages, ocr_date, updated_at`

func (r *SQLiteDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO docs (` + docColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.OrganizationID, doc.UserFileName, doc.BlobName,
		formatTime(doc.UploadDate), doc.UploadedBy, string(doc.State),
		encodeStrings(doc.TagIDs), encodeStringMap(doc.Metadata),
		doc.NPages, formatTimePtr(doc.OCRDate), formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *SQLiteDocumentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Document, error) {
	query := `SELECT ` + docColumns + ` FROM docs WHERE id = ? AND organization_id = ?`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *SQLiteDocumentRepository) List(ctx context.Context, orgID string, filter DocumentListFilter, skip, limit int) ([]*models.Document, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	where := []string{"organization_id = ?"}
	args := []any{orgID}

	if filter.NameSearch != "" {
		where = append(where, "user_file_name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+filter.NameSearch+"%")
	}
	// tag_ids is a JSON array; an any-of match looks for the quoted id.
	if len(filter.TagIDs) > 0 {
		var ors []string
		for _, id := range filter.TagIDs {
			ors = append(ors, "instr(tag_ids, ?) > 0")
			args = append(args, `"`+id+`"`)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	for k, v := range filter.MetadataSearch {
		where = append(where, "instr(metadata, ?) > 0")
		b := fmt.Sprintf(`"%s":"%s"`, k, v)
		args = append(args, b)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM docs WHERE " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	query := `SELECT ` + docColumns + ` FROM docs WHERE ` + whereClause + `
		ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (r *SQLiteDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE docs
		SET user_file_name = ?, tag_ids = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		doc.UserFileName, encodeStrings(doc.TagIDs), encodeStringMap(doc.Metadata),
		formatTime(time.Now()), doc.ID, doc.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteDocumentRepository) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM docs WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionState performs a compare-and-set on the document state. The
// predicate replaces locking: a lost race simply returns false.
func (r *SQLiteDocumentRepository) TransitionState(ctx context.Context, orgID, id string, from, to models.DocumentState) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE docs SET state = ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND state = ?
	`, string(to), formatTime(time.Now()), id, orgID, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition state: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLiteDocumentRepository) SetState(ctx context.Context, orgID, id string, state models.DocumentState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE docs SET state = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, string(state), formatTime(time.Now()), id, orgID)
	if err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

func (r *SQLiteDocumentRepository) SetOCRMetadata(ctx context.Context, orgID, id string, nPages int, ocrDate time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE docs SET n_pages = ?, ocr_date = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, nPages, formatTime(ocrDate), formatTime(time.Now()), id, orgID)
	if err != nil {
		return fmt.Errorf("failed to set OCR metadata: %w", err)
	}
	return nil
}

// SetMetadataKey sets one key in the metadata JSON. Read-modify-write inside
// a transaction; the docs row is the unit of atomicity.
func (r *SQLiteDocumentRepository) SetMetadataKey(ctx context.Context, orgID, id, key, value string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT metadata FROM docs WHERE id = ? AND organization_id = ?`, id, orgID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	meta := decodeStringMap(raw)
	meta[key] = value

	if _, err := tx.ExecContext(ctx, `
		UPDATE docs SET metadata = ?, updated_at = ? WHERE id = ? AND organization_id = ?
	`, encodeStringMap(meta), formatTime(time.Now()), id, orgID); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLiteDocumentRepository) CountByTag(ctx context.Context, orgID, tagID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM docs WHERE organization_id = ? AND instr(tag_ids, ?) > 0
	`, orgID, `"`+tagID+`"`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents by tag: %w", err)
	}
	return count, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var state, tagIDs, metadata, uploadDate, updatedAt string
	var ocrDate sql.NullString

	err := row.Scan(&doc.ID, &doc.OrganizationID, &doc.UserFileName, &doc.BlobName,
		&uploadDate, &doc.UploadedBy, &state, &tagIDs, &metadata,
		&doc.NPages, &ocrDate, &updatedAt)
	if err != nil {
		return nil, err
	}

	doc.State = models.DocumentState(state)
	doc.TagIDs = decodeStrings(tagIDs)
	doc.Metadata = decodeStringMap(metadata)
	doc.UploadDate = parseTime(uploadDate)
	doc.UpdatedAt = parseTime(updatedAt)
	doc.OCRDate = parseTimePtr(ocrDate)
	return &doc, nil
}
