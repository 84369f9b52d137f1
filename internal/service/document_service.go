package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// DocumentService manages document upload, retrieval and the OCR artifacts.
type DocumentService struct {
	logger *slog.Logger
	repos  *repository.Repositories
	blobs  BlobStore
	tags   *TagService
}

// NewDocumentService creates a new document service.
func NewDocumentService(logger *slog.Logger, repos *repository.Repositories, blobs BlobStore, tags *TagService) *DocumentService {
	return &DocumentService{logger: logger, repos: repos, blobs: blobs, tags: tags}
}

// DocumentUpload is one document in an upload batch. Content is a data URL
// or plain base64.
type DocumentUpload struct {
	Name     string
	Content  string
	TagIDs   []string
	Metadata map[string]string
}

// Upload stores a batch of documents and enqueues an OCR job for each.
func (s *DocumentService) Upload(ctx context.Context, orgID, userID string, uploads []DocumentUpload) ([]*models.Document, error) {
	if len(uploads) == 0 {
		return nil, validationErrorf("no documents in upload")
	}

	var docs []*models.Document
	for _, up := range uploads {
		if up.Name == "" {
			return nil, validationErrorf("document name must not be empty")
		}
		if err := s.tags.ValidateTagIDs(ctx, orgID, up.TagIDs); err != nil {
			return nil, err
		}
		content, contentType, err := DecodeDataURL(up.Content)
		if err != nil {
			return nil, validationErrorf("document %s: %v", up.Name, err)
		}

		now := time.Now().UTC()
		doc := &models.Document{
			ID:             models.NewID(),
			OrganizationID: orgID,
			UserFileName:   up.Name,
			UploadDate:     now,
			UploadedBy:     userID,
			State:          models.DocStateUploaded,
			TagIDs:         up.TagIDs,
			Metadata:       up.Metadata,
			UpdatedAt:      now,
		}
		doc.BlobName = OriginalBlobName(doc.ID, up.Name)

		meta := map[string]string{
			"user_file_name": up.Name,
			"size":           strconv.Itoa(len(content)),
		}
		if contentType != "" {
			meta["type"] = contentType
		}
		if err := s.blobs.Put(ctx, doc.BlobName, content, meta); err != nil {
			return nil, err
		}
		if err := s.repos.Document.Create(ctx, doc); err != nil {
			return nil, err
		}

		payload, _ := json.Marshal(models.OCRJobPayload{
			DocumentID:     doc.ID,
			OrganizationID: orgID,
		})
		if _, err := s.repos.Queue.Enqueue(ctx, models.QueueOCR, payload); err != nil {
			return nil, fmt.Errorf("failed to enqueue OCR job: %w", err)
		}

		docs = append(docs, doc)
	}
	return docs, nil
}

// List returns documents sorted by upload date descending.
func (s *DocumentService) List(ctx context.Context, orgID string, filter repository.DocumentListFilter, skip, limit int) ([]*models.Document, int, error) {
	return s.repos.Document.List(ctx, orgID, filter, skip, clampLimit(limit))
}

// Get returns a document's metadata.
func (s *DocumentService) Get(ctx context.Context, orgID, id string) (*models.Document, error) {
	return s.repos.Document.GetByID(ctx, orgID, id)
}

// GetContent returns a document's metadata plus the original bytes.
func (s *DocumentService) GetContent(ctx context.Context, orgID, id string) (*models.Document, []byte, error) {
	doc, err := s.repos.Document.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, nil, err
	}
	content, _, err := s.blobs.Get(ctx, doc.BlobName)
	if err != nil {
		return nil, nil, err
	}
	return doc, content, nil
}

// Update replaces a document's tag set, metadata and display name. The tag
// set is replaced, not merged.
func (s *DocumentService) Update(ctx context.Context, orgID, id string, tagIDs []string, metadata map[string]string, userFileName string) (*models.Document, error) {
	doc, err := s.repos.Document.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if tagIDs != nil {
		if err := s.tags.ValidateTagIDs(ctx, orgID, tagIDs); err != nil {
			return nil, err
		}
		doc.TagIDs = tagIDs
	}
	if metadata != nil {
		doc.Metadata = metadata
	}
	if userFileName != "" {
		doc.UserFileName = userFileName
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repos.Document.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete purges a document: blob, page images, OCR artifacts, LLM results
// and form submissions.
func (s *DocumentService) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.repos.Document.GetByID(ctx, orgID, id); err != nil {
		return err
	}

	// All artifact names share the document id prefix.
	names, err := s.blobs.ListByPrefix(ctx, id+".")
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.blobs.Delete(ctx, name); err != nil {
			s.logger.Warn("failed to delete blob during document purge",
				"document_id", id, "blob", name, "error", err)
		}
	}

	if err := s.repos.Result.DeleteByDocument(ctx, orgID, id); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	if err := s.repos.Submission.DeleteByDocument(ctx, orgID, id); err != nil {
		return fmt.Errorf("failed to delete submissions: %w", err)
	}
	return s.repos.Document.Delete(ctx, orgID, id)
}

// OCRText returns the document's OCR text, either the whole document
// (pageNum 0) or one 1-based page.
func (s *DocumentService) OCRText(ctx context.Context, orgID, id string, pageNum int) (string, error) {
	doc, err := s.repos.Document.GetByID(ctx, orgID, id)
	if err != nil {
		return "", err
	}
	if !doc.State.OCRComplete() {
		return "", validationErrorf("document %s has no OCR text (state %s)", id, doc.State)
	}

	name := OCRTextBlobName(id)
	if pageNum > 0 {
		if pageNum > doc.NPages {
			return "", validationErrorf("page %d out of range (document has %d pages)", pageNum, doc.NPages)
		}
		name = OCRPageTextBlobName(id, pageNum)
	}
	data, _, err := s.blobs.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// OCRBlocks returns the raw blocks JSON produced by the OCR provider.
func (s *DocumentService) OCRBlocks(ctx context.Context, orgID, id string) (json.RawMessage, error) {
	doc, err := s.repos.Document.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !doc.State.OCRComplete() {
		return nil, validationErrorf("document %s has no OCR blocks (state %s)", id, doc.State)
	}
	data, _, err := s.blobs.Get(ctx, OCRBlocksBlobName(id))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// OCRMetadata describes a completed OCR pass.
type OCRMetadata struct {
	NPages  int        `json:"n_pages"`
	OCRDate *time.Time `json:"ocr_date,omitempty"`
}

// GetOCRMetadata returns page count and completion time.
func (s *DocumentService) GetOCRMetadata(ctx context.Context, orgID, id string) (*OCRMetadata, error) {
	doc, err := s.repos.Document.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !doc.State.OCRComplete() {
		return nil, validationErrorf("document %s has no OCR metadata (state %s)", id, doc.State)
	}
	return &OCRMetadata{NPages: doc.NPages, OCRDate: doc.OCRDate}, nil
}

// DecodeDataURL decodes a data URL or plain base64 string. Returns the bytes
// and the declared media type, if any.
func DecodeDataURL(content string) ([]byte, string, error) {
	contentType := ""
	payload := content
	if strings.HasPrefix(content, "data:") {
		rest := strings.TrimPrefix(content, "data:")
		header, body, ok := strings.Cut(rest, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		contentType = strings.TrimSuffix(header, ";base64")
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some SDKs send URL-safe base64.
		data, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 content: %w", err)
		}
	}
	return data, contentType, nil
}
