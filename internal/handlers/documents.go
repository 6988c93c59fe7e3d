package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AlouiLouai/educ/internal/media/sniffer"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
	"github.com/AlouiLouai/educ/internal/service"
)

type documentResponse struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"teacherId"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	Price        *int      `json:"price"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	Status       string    `json:"status"`
	Grade        string    `json:"grade,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	OriginalName string    `json:"originalName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toDocumentResponse(doc models.Document) documentResponse {
	return documentResponse{
		ID:           doc.ID,
		TeacherID:    doc.TeacherID,
		Title:        doc.Title,
		Description:  doc.Description,
		Price:        doc.Price,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		Status:       string(doc.Status),
		Grade:        doc.Metadata.Grade,
		Subject:      doc.Metadata.Subject,
		OriginalName: doc.Metadata.OriginalName,
		CreatedAt:    doc.CreatedAt,
	}
}

func toDocumentResponses(docs []models.Document) []documentResponse {
	items := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDocumentResponse(doc))
	}
	return items
}

type uploadFileResponse struct {
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Document *documentResponse `json:"document,omitempty"`
}

func (h HandlerSet) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart_required"})
		return
	}

	var files []service.UploadFile
	for _, field := range []string{"files", "file"} {
		for _, fh := range form.File[field] {
			files = append(files, uploadFile(fh))
		}
	}

	result, err := h.documents.Upload(c.Request.Context(), actor(c), service.UploadForm{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       c.PostForm("price"),
		Grade:       c.PostForm("grade"),
		Subject:     c.PostForm("subject"),
	}, files)
	if err != nil {
		h.documentError(c, err)
		return
	}

	items := make([]uploadFileResponse, 0, len(result.Files))
	for _, f := range result.Files {
		item := uploadFileResponse{Name: f.Name, Status: f.Status, Error: f.Error}
		if f.Document != nil {
			doc := toDocumentResponse(*f.Document)
			item.Document = &doc
		}
		items = append(items, item)
	}

	status := http.StatusCreated
	if result.Succeeded() < len(result.Files) {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"files": items})
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: sniffer.MimeTypeFromHTTP(http.Header(fh.Header)),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (h HandlerSet) ListDocuments(c *gin.Context) {
	limit, offset := pagination(c)
	docs, err := h.documents.ListByTeacher(c.Request.Context(), actor(c), c.Query("teacherId"), limit, offset)
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toDocumentResponses(docs)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h HandlerSet) UpdateDocumentStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status_required"})
		return
	}

	doc, err := h.documents.UpdateStatus(c.Request.Context(), actor(c), c.Param("id"), models.DocumentStatus(req.Status))
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": toDocumentResponse(doc)})
}

func (h HandlerSet) DownloadDocument(c *gin.Context) {
	url, err := h.documents.DownloadURL(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h HandlerSet) DeleteDocument(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.documentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Catalog(c *gin.Context) {
	limit, offset := pagination(c)
	docs, err := h.documents.ListPublished(c.Request.Context(), models.DocumentFilter{
		Grade:   c.Query("grade"),
		Subject: c.Query("subject"),
		Query:   c.Query("q"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toDocumentResponses(docs)})
}

func (h HandlerSet) documentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, repository.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
	case errors.Is(err, service.ErrNoFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("document request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
