package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AlouiLouai/educ/internal/ids"
	"github.com/AlouiLouai/educ/internal/media/sniffer"
	"github.com/AlouiLouai/educ/internal/metrics"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/tasks"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidStatus = errors.New("invalid document status")
	ErrNoFiles       = errors.New("no files to upload")
)

const (
	FileStatusSuccess = "success"
	FileStatusError   = "error"
)

const cleanupTimeout = 10 * time.Second

type DocumentStore interface {
	Create(ctx context.Context, doc models.Document) error
	GetByID(ctx context.Context, id string) (models.Document, error)
	ListByTeacher(ctx context.Context, teacherID string, limit, offset int) ([]models.Document, error)
	List(ctx context.Context, limit, offset int) ([]models.Document, error)
	ListPublished(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error
	Delete(ctx context.Context, id string) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Remove(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, filename string) (string, error)
}

// Actor is the authenticated caller of a document operation.
type Actor struct {
	ID   string
	Role models.Role
}

type UploadForm struct {
	Title       string
	Description string
	Price       string
	Grade       string
	Subject     string
}

type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type FileResult struct {
	Name     string           `json:"name"`
	Status   string           `json:"status"`
	Error    string           `json:"error,omitempty"`
	Document *models.Document `json:"-"`
}

type UploadResult struct {
	Files []FileResult
}

func (r UploadResult) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == FileStatusSuccess {
			n++
		}
	}
	return n
}

type DocumentOptions struct {
	MaxFileSize int64
	Concurrency int
}

type DocumentService struct {
	docs  DocumentStore
	store ObjectStore
	queue TaskQueue
	opts  DocumentOptions
	log   zerolog.Logger
}

func NewDocumentService(docs DocumentStore, store ObjectStore, queue TaskQueue, opts DocumentOptions, log zerolog.Logger) *DocumentService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	return &DocumentService{
		docs:  docs,
		store: store,
		queue: queue,
		opts:  opts,
		log:   log,
	}
}

// Upload stores a batch of files for a teacher. Each file is an independent
// object write plus row insert; a failed insert removes the object again.
// Per-file failures are reported in the result, not as an error.
func (s *DocumentService) Upload(ctx context.Context, actor Actor, form UploadForm, files []UploadFile) (UploadResult, error) {
	if actor.Role != models.RoleTeacher {
		return UploadResult{}, ErrForbidden
	}

	files = dedupeFiles(files)
	if len(files) == 0 {
		return UploadResult{}, ErrNoFiles
	}

	multi := len(files) > 1
	results := make([]FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			results[i] = s.uploadOne(ctx, actor.ID, form, file, multi)
			metrics.UploadFiles.WithLabelValues(results[i].Status).Inc()
			return nil
		})
	}
	_ = g.Wait()

	return UploadResult{Files: results}, nil
}

func (s *DocumentService) uploadOne(ctx context.Context, teacherID string, form UploadForm, file UploadFile, multi bool) FileResult {
	res := FileResult{Name: file.Name, Status: FileStatusError}
	logger := s.log.With().Str("user_id", teacherID).Str("file", file.Name).Logger()

	if file.Size <= 0 {
		res.Error = "empty file"
		return res
	}
	if s.opts.MaxFileSize > 0 && file.Size > s.opts.MaxFileSize {
		res.Error = fmt.Sprintf("file exceeds %d bytes", s.opts.MaxFileSize)
		return res
	}

	rc, err := file.Open()
	if err != nil {
		res.Error = "unreadable file"
		return res
	}
	defer rc.Close()

	kind, head, err := sniffer.Detect(rc)
	if err != nil {
		res.Error = "unsupported file type"
		return res
	}
	if !sniffer.Accepts(file.ContentType, kind) {
		res.Error = "content type mismatch"
		return res
	}

	key := BuildStoragePath(teacherID, file.Name, kind.Ext)
	size, err := s.store.Put(ctx, key, io.MultiReader(bytes.NewReader(head), rc), file.Size, kind.MIME)
	if err != nil {
		logger.Error().Err(err).Msg("store object failed")
		res.Error = "storage write failed"
		return res
	}

	now := time.Now().UTC()
	doc := models.Document{
		ID:          ids.New(),
		TeacherID:   teacherID,
		Title:       documentTitle(form.Title, file.Name, multi),
		Description: optional(strings.TrimSpace(form.Description)),
		Price:       parsePrice(form.Price),
		StoragePath: key,
		FileType:    kind.MIME,
		FileSize:    size,
		Status:      models.DocumentStatusDraft,
		Metadata: models.DocumentMetadata{
			Grade:        form.Grade,
			Subject:      form.Subject,
			OriginalName: file.Name,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		logger.Error().Err(err).Str("object_key", key).Msg("save document failed")
		s.compensate(ctx, key, logger)
		res.Error = "save failed"
		return res
	}

	res.Status = FileStatusSuccess
	res.Document = &doc
	return res
}

// compensate removes an object whose row was never written. If storage
// refuses too, the worker retries the delete later.
func (s *DocumentService) compensate(ctx context.Context, key string, logger zerolog.Logger) {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()

	err := s.store.Remove(ctx, key)
	if err == nil {
		metrics.CompensatingDeletes.WithLabelValues("removed").Inc()
		return
	}
	logger.Error().Err(err).Str("object_key", key).Msg("compensating delete failed")

	metrics.CompensatingDeletes.WithLabelValues("deferred").Inc()
	if err := s.queue.Enqueue(ctx, tasks.RemoveObject(key)); err != nil {
		logger.Error().Err(err).Str("object_key", key).Msg("orphaned object left in storage")
	}
}

// ListByTeacher lists a teacher's documents. Teachers only see their own;
// admins name the teacher, or get every document when teacherID is empty.
func (s *DocumentService) ListByTeacher(ctx context.Context, actor Actor, teacherID string, limit, offset int) ([]models.Document, error) {
	limit, offset = pageBounds(limit, offset)
	switch actor.Role {
	case models.RoleTeacher:
		if teacherID != "" && teacherID != actor.ID {
			return nil, ErrForbidden
		}
		return s.docs.ListByTeacher(ctx, actor.ID, limit, offset)
	case models.RoleAdmin:
		if teacherID == "" {
			return s.docs.List(ctx, limit, offset)
		}
		return s.docs.ListByTeacher(ctx, teacherID, limit, offset)
	}
	return nil, ErrForbidden
}

func (s *DocumentService) ListPublished(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	filter.Limit, filter.Offset = pageBounds(filter.Limit, filter.Offset)
	filter.Query = strings.TrimSpace(filter.Query)
	return s.docs.ListPublished(ctx, filter)
}

func (s *DocumentService) UpdateStatus(ctx context.Context, actor Actor, id string, status models.DocumentStatus) (models.Document, error) {
	if !status.Valid() {
		return models.Document{}, ErrInvalidStatus
	}
	doc, err := s.authorize(ctx, actor, id)
	if err != nil {
		return models.Document{}, err
	}
	if err := s.docs.UpdateStatus(ctx, id, status); err != nil {
		return models.Document{}, err
	}
	doc.Status = status
	return doc, nil
}

func (s *DocumentService) DownloadURL(ctx context.Context, actor Actor, id string) (string, error) {
	doc, err := s.authorize(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, doc.StoragePath, doc.Metadata.OriginalName)
}

func (s *DocumentService) Delete(ctx context.Context, actor Actor, id string) error {
	doc, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}

	ctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.store.Remove(ctx, doc.StoragePath); err != nil {
		s.log.Warn().Err(err).Str("document_id", id).Str("object_key", doc.StoragePath).Msg("remove object failed, deferring")
		if err := s.queue.Enqueue(ctx, tasks.RemoveObject(doc.StoragePath)); err != nil {
			s.log.Error().Err(err).Str("object_key", doc.StoragePath).Msg("orphaned object left in storage")
		}
	}
	return nil
}

// cleanupContext outlives the request: once a row or object is gone the
// matching cleanup must run even if the caller has hung up.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// authorize loads a document the actor owns. Admins may act on any document.
func (s *DocumentService) authorize(ctx context.Context, actor Actor, id string) (models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return models.Document{}, err
	}
	if actor.Role != models.RoleAdmin && doc.TeacherID != actor.ID {
		return models.Document{}, ErrForbidden
	}
	return doc, nil
}

func dedupeFiles(files []UploadFile) []UploadFile {
	type fileKey struct {
		name string
		size int64
	}
	seen := make(map[fileKey]struct{}, len(files))
	out := make([]UploadFile, 0, len(files))
	for _, f := range files {
		k := fileKey{f.Name, f.Size}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}

// BuildStoragePath returns {teacherID}/{uuid}-{sanitized}.{ext}. The whole
// original name is sanitized; ext is what follows its last dot, or fallbackExt.
func BuildStoragePath(teacherID, name, fallbackExt string) string {
	ext := fallbackExt
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		if candidate := strings.ToLower(name[idx+1:]); isASCIIAlnum(candidate) {
			ext = candidate
		}
	}
	return fmt.Sprintf("%s/%s-%s.%s", teacherID, ids.NewUUID(), sanitizeName(name), ext)
}

func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isASCIIAlnumRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isASCIIAlnum(s string) bool {
	for _, r := range s {
		if !isASCIIAlnumRune(r) {
			return false
		}
	}
	return s != ""
}

func isASCIIAlnumRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func documentTitle(title, filename string, multi bool) string {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return filename
	case multi:
		return title + " - " + filename
	default:
		return title
	}
}

// parsePrice keeps only the digits of the raw field; no digits means no price.
func parsePrice(raw string) *int {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	price, err := strconv.Atoi(digits.String())
	if err != nil {
		return nil
	}
	return &price
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
