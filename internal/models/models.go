// Package models defines the domain models for DocRouter.
// Revisioned entities (schemas, prompts, forms) carry two identifiers: a
// stable logical id shared by every revision, and a revision id unique to a
// single immutable revision.
package models

import (
	"encoding/json"
	"time"
)

// DocumentState represents where a document sits in the OCR/LLM pipeline.
type DocumentState string

const (
	DocStateUploaded      DocumentState = "uploaded"
	DocStateOCRProcessing DocumentState = "ocr_processing"
	DocStateOCRCompleted  DocumentState = "ocr_completed"
	DocStateOCRFailed     DocumentState = "ocr_failed"
	DocStateLLMProcessing DocumentState = "llm_processing"
	DocStateLLMCompleted  DocumentState = "llm_completed"
	DocStateLLMFailed     DocumentState = "llm_failed"
)

// stateRank orders states for monotone-forward checks. Retries reset a
// document to the subordinate "processing" state, which is the only
// backward transition allowed.
var stateRank = map[DocumentState]int{
	DocStateUploaded:      0,
	DocStateOCRProcessing: 1,
	DocStateOCRFailed:     2,
	DocStateOCRCompleted:  3,
	DocStateLLMProcessing: 4,
	DocStateLLMFailed:     5,
	DocStateLLMCompleted:  6,
}

// AtLeast reports whether s has reached (or passed) the given state.
func (s DocumentState) AtLeast(other DocumentState) bool {
	return stateRank[s] >= stateRank[other]
}

// OCRComplete reports whether OCR artifacts exist for a document in state s.
func (s DocumentState) OCRComplete() bool {
	return s.AtLeast(DocStateOCRCompleted) && s != DocStateOCRFailed
}

// Document represents an uploaded document and its pipeline state.
type Document struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	UserFileName   string            `json:"user_file_name"`
	BlobName       string            `json:"blob_name"`
	UploadDate     time.Time         `json:"upload_date"`
	UploadedBy     string            `json:"uploaded_by"`
	State          DocumentState     `json:"state"`
	TagIDs         []string          `json:"tag_ids"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	NPages         int               `json:"n_pages"`
	OCRDate        *time.Time        `json:"ocr_date,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Tag labels documents, prompts, forms and telemetry records within an org.
// Names are unique per organization (case-insensitive).
type Tag struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color,omitempty"`
	Description    string    `json:"description,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Schema is the parent record of a revisioned JSON schema.
type Schema struct {
	ID             string    `json:"schema_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SchemaRevision is one immutable version of a schema's response format.
type SchemaRevision struct {
	RevID          string          `json:"schema_revid"`
	SchemaID       string          `json:"schema_id"`
	SchemaVersion  int             `json:"schema_version"`
	ResponseFormat json.RawMessage `json:"response_format"`
	CreatedAt      time.Time       `json:"created_at"`
	CreatedBy      string          `json:"created_by"`
	// Denormalized from the parent for list responses.
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
}

// Prompt is the parent record of a revisioned extraction prompt.
type Prompt struct {
	ID             string    `json:"prompt_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PromptRevision is one immutable version of a prompt. If SchemaID is set
// without SchemaVersion at write time, the latest schema version is resolved
// and persisted on the revision.
type PromptRevision struct {
	RevID          string    `json:"prompt_revid"`
	PromptID       string    `json:"prompt_id"`
	PromptVersion  int       `json:"prompt_version"`
	Content        string    `json:"content"`
	Model          string    `json:"model"`
	TagIDs         []string  `json:"tag_ids"`
	SchemaID       string    `json:"schema_id,omitempty"`
	SchemaVersion  int       `json:"schema_version,omitempty"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by"`
	Name           string    `json:"name"`
}

// DefaultPromptRevID is the literal revision key of the implicit schema-less
// extraction prompt applied to every document.
const DefaultPromptRevID = "default"

// DefaultPromptRevision returns the implicit default prompt. It is never
// persisted; results produced by it are stored under the literal key
// "default".
func DefaultPromptRevision(model string) *PromptRevision {
	return &PromptRevision{
		RevID:         DefaultPromptRevID,
		PromptID:      DefaultPromptRevID,
		PromptVersion: 1,
		Name:          "Default Prompt",
		Model:         model,
		Content: "Extract the key information from this document as a flat JSON object. " +
			"Use descriptive snake_case keys and preserve values exactly as written.",
	}
}

// FormResponseFormat holds a Form.io definition plus the mapping from
// extraction fields to form fields. Both are stored verbatim.
type FormResponseFormat struct {
	JSONFormio        json.RawMessage `json:"json_formio"`
	JSONFormioMapping json.RawMessage `json:"json_formio_mapping,omitempty"`
}

// Form is the parent record of a revisioned form definition.
type Form struct {
	ID             string    `json:"form_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FormRevision is one immutable version of a form definition.
type FormRevision struct {
	RevID          string             `json:"form_revid"`
	FormID         string             `json:"form_id"`
	FormVersion    int                `json:"form_version"`
	ResponseFormat FormResponseFormat `json:"response_format"`
	TagIDs         []string           `json:"tag_ids"`
	OrganizationID string             `json:"organization_id"`
	CreatedAt      time.Time          `json:"created_at"`
	CreatedBy      string             `json:"created_by"`
	Name           string             `json:"name"`
}

// LLMResult is the structured extraction produced by running one prompt
// revision against one document. Unique on (document_id, prompt_revid).
type LLMResult struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"organization_id"`
	DocumentID       string          `json:"document_id"`
	PromptRevID      string          `json:"prompt_revid"`
	PromptID         string          `json:"prompt_id"`
	PromptVersion    int             `json:"prompt_version"`
	LLMResult        json.RawMessage `json:"llm_result"`
	UpdatedLLMResult json.RawMessage `json:"updated_llm_result"`
	IsEdited         bool            `json:"is_edited"`
	IsVerified       bool            `json:"is_verified"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FormSubmission captures user-entered form data derived from an extraction.
// Upserted on (document_id, form_revid, organization_id).
type FormSubmission struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	DocumentID     string          `json:"document_id"`
	FormRevID      string          `json:"form_revid"`
	SubmissionData json.RawMessage `json:"submission_data"`
	SubmittedBy    string          `json:"submitted_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LLMProvider is an admin-configured upstream LLM provider.
type LLMProvider struct {
	Name            string    `json:"name"`
	Enabled         bool      `json:"enabled"`
	APIKeyEncrypted string    `json:"-"`
	BaseURL         string    `json:"base_url,omitempty"`
	EnabledModels   []string  `json:"litellm_models_enabled"`
	UpdatedAt       time.Time `json:"updated_at"`
}
