package handlers

import (
	"context"
	"encoding/base64"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// OrgPath is the shared organization path parameter.
type OrgPath struct {
	Org string `path:"org" doc:"Organization ID"`
}

// UploadDocumentsInput is the body of POST /orgs/{org}/documents.
type UploadDocumentsInput struct {
	OrgPath
	Body struct {
		Documents []struct {
			Name     string            `json:"name"`
			Content  string            `json:"content" doc:"Base64 or data URL encoded file content"`
			TagIDs   []string          `json:"tag_ids,omitempty"`
			Metadata map[string]string `json:"metadata,omitempty"`
		} `json:"documents"`
	}
}

// UploadDocumentsOutput is the stored batch.
type UploadDocumentsOutput struct {
	Body struct {
		Documents []*models.Document `json:"documents"`
	}
}

// UploadDocuments stores a batch of documents and queues OCR for each.
func (h *Handlers) UploadDocuments(ctx context.Context, input *UploadDocumentsInput) (*UploadDocumentsOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}

	uploads := make([]service.DocumentUpload, 0, len(input.Body.Documents))
	for _, d := range input.Body.Documents {
		uploads = append(uploads, service.DocumentUpload{
			Name:     d.Name,
			Content:  d.Content,
			TagIDs:   d.TagIDs,
			Metadata: d.Metadata,
		})
	}
	docs, err := h.services.Document.Upload(ctx, input.Org, id.UserID, uploads)
	if err != nil {
		return nil, mapError(err)
	}
	out := &UploadDocumentsOutput{}
	out.Body.Documents = docs
	return out, nil
}

// ListDocumentsInput filters the document listing.
type ListDocumentsInput struct {
	OrgPath
	Pagination
	TagIDs     []string `query:"tag_ids"`
	NameSearch string   `query:"name_search"`
}

// ListDocumentsOutput is a page of documents.
type ListDocumentsOutput struct {
	Body struct {
		Documents []*models.Document `json:"documents"`
		Total     int                `json:"total"`
	}
}

// ListDocuments lists documents in an organization.
func (h *Handlers) ListDocuments(ctx context.Context, input *ListDocumentsInput) (*ListDocumentsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	docs, total, err := h.services.Document.List(ctx, input.Org, repository.DocumentListFilter{
		TagIDs:     input.TagIDs,
		NameSearch: input.NameSearch,
	}, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListDocumentsOutput{}
	out.Body.Documents = docs
	out.Body.Total = total
	return out, nil
}

// GetDocumentInput identifies one document.
type GetDocumentInput struct {
	OrgPath
	Doc     string `path:"doc" doc:"Document ID"`
	Content bool   `query:"content" doc:"Include base64 file content"`
}

// GetDocumentOutput is a document, optionally with its content.
type GetDocumentOutput struct {
	Body struct {
		*models.Document
		Content string `json:"content,omitempty"`
	}
}

// GetDocument returns one document's metadata and pipeline state.
func (h *Handlers) GetDocument(ctx context.Context, input *GetDocumentInput) (*GetDocumentOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	out := &GetDocumentOutput{}
	if input.Content {
		doc, content, err := h.services.Document.GetContent(ctx, input.Org, input.Doc)
		if err != nil {
			return nil, mapError(err)
		}
		out.Body.Document = doc
		out.Body.Content = base64.StdEncoding.EncodeToString(content)
		return out, nil
	}
	doc, err := h.services.Document.Get(ctx, input.Org, input.Doc)
	if err != nil {
		return nil, mapError(err)
	}
	out.Body.Document = doc
	return out, nil
}

// UpdateDocumentInput is the body of PUT /orgs/{org}/documents/{doc}.
type UpdateDocumentInput struct {
	OrgPath
	Doc  string `path:"doc"`
	Body struct {
		TagIDs   []string          `json:"tag_ids"`
		Metadata map[string]string `json:"metadata,omitempty"`
		FileName string            `json:"file_name,omitempty"`
	}
}

// DocumentOutput wraps a single document.
type DocumentOutput struct {
	Body *models.Document
}

// UpdateDocument updates a document's tags, metadata or display name.
func (h *Handlers) UpdateDocument(ctx context.Context, input *UpdateDocumentInput) (*DocumentOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	doc, err := h.services.Document.Update(ctx, input.Org, input.Doc, input.Body.TagIDs, input.Body.Metadata, input.Body.FileName)
	if err != nil {
		return nil, mapError(err)
	}
	return &DocumentOutput{Body: doc}, nil
}

// DeleteDocumentInput identifies the document to delete.
type DeleteDocumentInput struct {
	OrgPath
	Doc string `path:"doc"`
}

// DeleteDocument removes a document, its blobs, results and queue work.
func (h *Handlers) DeleteDocument(ctx context.Context, input *DeleteDocumentInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	if err := h.services.Document.Delete(ctx, input.Org, input.Doc); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// OCRTextInput identifies the OCR text to download.
type OCRTextInput struct {
	OrgPath
	Doc  string `path:"doc"`
	Page int    `query:"page" minimum:"0" doc:"1-based page number; 0 returns the whole document"`
}

// OCRTextOutput is raw extracted text.
type OCRTextOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// DownloadOCRText returns the extracted text, whole or per page.
func (h *Handlers) DownloadOCRText(ctx context.Context, input *OCRTextInput) (*OCRTextOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	text, err := h.services.Document.OCRText(ctx, input.Org, input.Doc, input.Page)
	if err != nil {
		return nil, mapError(err)
	}
	return &OCRTextOutput{ContentType: "text/plain; charset=utf-8", Body: []byte(text)}, nil
}

// OCRBlocksInput identifies the OCR block geometry to download.
type OCRBlocksInput struct {
	OrgPath
	Doc string `path:"doc"`
}

// OCRBlocksOutput is the raw block JSON produced by the OCR provider.
type OCRBlocksOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// DownloadOCRBlocks returns the OCR block geometry verbatim.
func (h *Handlers) DownloadOCRBlocks(ctx context.Context, input *OCRBlocksInput) (*OCRBlocksOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	blocks, err := h.services.Document.OCRBlocks(ctx, input.Org, input.Doc)
	if err != nil {
		return nil, mapError(err)
	}
	return &OCRBlocksOutput{ContentType: "application/json", Body: blocks}, nil
}

// OCRMetadataInput identifies the document.
type OCRMetadataInput struct {
	OrgPath
	Doc string `path:"doc"`
}

// OCRMetadataOutput is the OCR completion metadata.
type OCRMetadataOutput struct {
	Body *service.OCRMetadata
}

// GetOCRMetadata returns page count and OCR completion time.
func (h *Handlers) GetOCRMetadata(ctx context.Context, input *OCRMetadataInput) (*OCRMetadataOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	meta, err := h.services.Document.GetOCRMetadata(ctx, input.Org, input.Doc)
	if err != nil {
		return nil, mapError(err)
	}
	return &OCRMetadataOutput{Body: meta}, nil
}
