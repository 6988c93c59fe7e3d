package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlouiLouai/educ/internal/models"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, teacher_id, title, description, price, storage_path, file_type, file_size,
	status, metadata, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc models.Document) error {
	const query = `
		INSERT INTO documents (
			id, teacher_id, title, description, price, storage_path, file_type, file_size,
			status, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
	`

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		doc.ID,
		doc.TeacherID,
		doc.Title,
		doc.Description,
		doc.Price,
		doc.StoragePath,
		doc.FileType,
		doc.FileSize,
		doc.Status,
		meta,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByTeacher(ctx context.Context, teacherID string, limit, offset int) ([]models.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE teacher_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, teacherID, limit, offset)
}

func (r *DocumentRepository) ListPublished(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE status = 'published'
		  AND ($1 = '' OR metadata->>'grade' = $1)
		  AND ($2 = '' OR metadata->>'subject' = $2)
		  AND ($3 = '' OR title ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	return r.list(ctx, query, filter.Grade, filter.Subject, filter.Query, filter.Limit, filter.Offset)
}

func (r *DocumentRepository) List(ctx context.Context, limit, offset int) ([]models.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, limit, offset)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	const query = `UPDATE documents SET status = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// CountByStatus counts documents, optionally restricted to one teacher.
func (r *DocumentRepository) CountByStatus(ctx context.Context, teacherID string) (map[models.DocumentStatus]int, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM documents
		WHERE ($1 = '' OR teacher_id::text = $1)
		GROUP BY status
	`

	rows, err := r.pool.Query(ctx, query, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.DocumentStatus]int)
	for rows.Next() {
		var (
			status models.DocumentStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *DocumentRepository) list(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var (
		doc  models.Document
		meta []byte
	)
	if err := row.Scan(
		&doc.ID,
		&doc.TeacherID,
		&doc.Title,
		&doc.Description,
		&doc.Price,
		&doc.StoragePath,
		&doc.FileType,
		&doc.FileSize,
		&doc.Status,
		&meta,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return models.Document{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
			return models.Document{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return doc, nil
}
