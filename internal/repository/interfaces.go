// Package repository defines repository interfaces for data access.
// Every org-scoped query carries an organization_id filter; the only
// cross-org reads are account-wide admin reports.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// UserRepository defines methods for user account data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, skip, limit int) ([]*models.User, int, error)
	// CountAdmins counts users holding the system admin role.
	CountAdmins(ctx context.Context) (int, error)
}

// OrganizationRepository defines methods for organization data access.
// Members are stored normalized and reassembled onto the model.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, skip, limit int) ([]*models.Organization, int, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Organization, error)
}

// AccessTokenRepository defines methods for opaque bearer token data access.
type AccessTokenRepository interface {
	Create(ctx context.Context, token *models.AccessToken) error
	GetByHash(ctx context.Context, hash string) (*models.AccessToken, error)
	ListByUser(ctx context.Context, userID string, orgID *string) ([]*models.AccessToken, error)
	Delete(ctx context.Context, id, userID string) error
}

// DocumentListFilter narrows document listings.
type DocumentListFilter struct {
	TagIDs         []string          // any-of match
	NameSearch     string            // case-insensitive substring on user_file_name
	MetadataSearch map[string]string // exact match on metadata keys
}

// DocumentRepository defines methods for document data access.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, orgID, id string) (*models.Document, error)
	List(ctx context.Context, orgID string, filter DocumentListFilter, skip, limit int) ([]*models.Document, int, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, orgID, id string) error
	// TransitionState atomically moves a document from one state to another.
	// Returns false without error when the document is no longer in `from`.
	TransitionState(ctx context.Context, orgID, id string, from, to models.DocumentState) (bool, error)
	// SetState unconditionally sets the state (used for terminal failures).
	SetState(ctx context.Context, orgID, id string, state models.DocumentState) error
	// SetOCRMetadata records page count and OCR completion time.
	SetOCRMetadata(ctx context.Context, orgID, id string, nPages int, ocrDate time.Time) error
	// SetMetadataKey sets a single metadata key (used for error surfacing).
	SetMetadataKey(ctx context.Context, orgID, id, key, value string) error
	// CountByTag counts documents referencing a tag (for delete guards).
	CountByTag(ctx context.Context, orgID, tagID string) (int, error)
}

// TagRepository defines methods for tag data access.
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, orgID, id string) (*models.Tag, error)
	GetByIDs(ctx context.Context, orgID string, ids []string) ([]*models.Tag, error)
	List(ctx context.Context, orgID string, skip, limit int) ([]*models.Tag, int, error)
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, orgID, id string) error
}

// RevisionListFilter narrows config registry listings.
type RevisionListFilter struct {
	NameSearch string   // case-insensitive substring on parent name
	TagIDs     []string // any-of match on revision tag_ids
	DocumentID string   // prompts only: restrict to prompts matching the doc's tags
}

// SchemaRepository defines methods for schema + revision data access.
type SchemaRepository interface {
	// GetParentByName finds the parent by case-insensitive name within the org.
	GetParentByName(ctx context.Context, orgID, name string) (*models.Schema, error)
	GetParent(ctx context.Context, orgID, schemaID string) (*models.Schema, error)
	// CreateRevision inserts the parent if absent and allocates the next
	// version atomically.
	CreateRevision(ctx context.Context, parent *models.Schema, rev *models.SchemaRevision) error
	RenameParent(ctx context.Context, orgID, schemaID, name string) error
	GetRevision(ctx context.Context, orgID, revID string) (*models.SchemaRevision, error)
	GetRevisionByVersion(ctx context.Context, orgID, schemaID string, version int) (*models.SchemaRevision, error)
	GetLatestRevision(ctx context.Context, orgID, schemaID string) (*models.SchemaRevision, error)
	// ListLatest returns the latest revision per logical id in the org.
	ListLatest(ctx context.Context, orgID string, filter RevisionListFilter, skip, limit int) ([]*models.SchemaRevision, int, error)
	// Delete removes the parent and all revisions.
	Delete(ctx context.Context, orgID, schemaID string) error
}

// PromptRepository defines methods for prompt + revision data access.
type PromptRepository interface {
	GetParentByName(ctx context.Context, orgID, name string) (*models.Prompt, error)
	GetParent(ctx context.Context, orgID, promptID string) (*models.Prompt, error)
	CreateRevision(ctx context.Context, parent *models.Prompt, rev *models.PromptRevision) error
	RenameParent(ctx context.Context, orgID, promptID, name string) error
	GetRevision(ctx context.Context, orgID, revID string) (*models.PromptRevision, error)
	GetLatestRevision(ctx context.Context, orgID, promptID string) (*models.PromptRevision, error)
	ListLatest(ctx context.Context, orgID string, filter RevisionListFilter, skip, limit int) ([]*models.PromptRevision, int, error)
	// ListLatestByTags returns the latest revision of every prompt whose
	// tag_ids intersect the given set.
	ListLatestByTags(ctx context.Context, orgID string, tagIDs []string) ([]*models.PromptRevision, error)
	Delete(ctx context.Context, orgID, promptID string) error
	// CountBySchema counts prompt revisions referencing a schema (delete guard).
	CountBySchema(ctx context.Context, orgID, schemaID string) (int, error)
	// CountByTag counts prompt revisions referencing a tag (delete guard).
	CountByTag(ctx context.Context, orgID, tagID string) (int, error)
}

// FormRepository defines methods for form + revision data access.
type FormRepository interface {
	GetParentByName(ctx context.Context, orgID, name string) (*models.Form, error)
	GetParent(ctx context.Context, orgID, formID string) (*models.Form, error)
	CreateRevision(ctx context.Context, parent *models.Form, rev *models.FormRevision) error
	RenameParent(ctx context.Context, orgID, formID, name string) error
	GetRevision(ctx context.Context, orgID, revID string) (*models.FormRevision, error)
	GetLatestRevision(ctx context.Context, orgID, formID string) (*models.FormRevision, error)
	ListLatest(ctx context.Context, orgID string, filter RevisionListFilter, skip, limit int) ([]*models.FormRevision, int, error)
	Delete(ctx context.Context, orgID, formID string) error
	CountByTag(ctx context.Context, orgID, tagID string) (int, error)
}

// ResultRepository defines methods for LLM result data access.
type ResultRepository interface {
	// Upsert inserts or replaces the row keyed by (document_id, prompt_revid).
	Upsert(ctx context.Context, result *models.LLMResult) error
	Get(ctx context.Context, orgID, documentID, promptRevID string) (*models.LLMResult, error)
	// GetLatestForPrompt returns the most recent result for any revision of
	// the given logical prompt id (fallback retrieval).
	GetLatestForPrompt(ctx context.Context, orgID, documentID, promptID string) (*models.LLMResult, error)
	ListByDocument(ctx context.Context, orgID, documentID string) ([]*models.LLMResult, error)
	// UpdateUserEdit records a user edit / verification on an existing row.
	UpdateUserEdit(ctx context.Context, orgID, documentID, promptRevID string, updated []byte, isEdited, isVerified bool) error
	Delete(ctx context.Context, orgID, documentID, promptRevID string) error
	DeleteByDocument(ctx context.Context, orgID, documentID string) error
}

// SubmissionRepository defines methods for form submission data access.
type SubmissionRepository interface {
	// Upsert inserts or updates the row keyed by (document_id, form_revid, org).
	Upsert(ctx context.Context, sub *models.FormSubmission) error
	Get(ctx context.Context, orgID, documentID, formRevID string) (*models.FormSubmission, error)
	ListByDocument(ctx context.Context, orgID, documentID string) ([]*models.FormSubmission, error)
	Delete(ctx context.Context, orgID, documentID, formRevID string) error
	DeleteByDocument(ctx context.Context, orgID, documentID string) error
}

// PaymentsRepository defines methods for credit balances and usage records.
type PaymentsRepository interface {
	GetCustomer(ctx context.Context, orgID string) (*models.PaymentsCustomer, error)
	UpsertCustomer(ctx context.Context, customer *models.PaymentsCustomer) error
	// Debit applies the stacked-balance debit (subscription, purchased,
	// granted) and appends the usage record in a single transaction.
	Debit(ctx context.Context, record *models.UsageRecord) error
	// UsageInRange returns usage records with start <= timestamp < end.
	UsageInRange(ctx context.Context, orgID string, start, end time.Time) ([]*models.UsageRecord, error)
}

// LLMProviderRepository defines methods for provider configuration.
type LLMProviderRepository interface {
	Upsert(ctx context.Context, p *models.LLMProvider) error
	Get(ctx context.Context, name string) (*models.LLMProvider, error)
	List(ctx context.Context) ([]*models.LLMProvider, error)
	ListEnabled(ctx context.Context) ([]*models.LLMProvider, error)
}

// TelemetryListFilter narrows telemetry listings.
type TelemetryListFilter struct {
	TagIDs     []string
	Start      *time.Time
	End        *time.Time
	Severity   string // logs only
	NameSearch string // metrics only
}

// TelemetryRepository defines methods for telemetry record data access.
type TelemetryRepository interface {
	CreateTrace(ctx context.Context, t *models.TelemetryTrace) error
	CreateMetric(ctx context.Context, m *models.TelemetryMetric) error
	CreateLog(ctx context.Context, l *models.TelemetryLog) error
	ListTraces(ctx context.Context, orgID string, filter TelemetryListFilter, skip, limit int) ([]*models.TelemetryTrace, int, error)
	ListMetrics(ctx context.Context, orgID string, filter TelemetryListFilter, skip, limit int) ([]*models.TelemetryMetric, int, error)
	ListLogs(ctx context.Context, orgID string, filter TelemetryListFilter, skip, limit int) ([]*models.TelemetryLog, int, error)
	// CountByTag counts telemetry records referencing a tag (delete guard).
	CountByTag(ctx context.Context, orgID, tagID string) (int, error)
}

// ClaudeRepository defines methods for Claude log/hook data access.
type ClaudeRepository interface {
	// LastEntryUUIDs returns the entry UUIDs already stored for a session in
	// insertion order (used by the forward-insert deduplication scan).
	LastEntryUUIDs(ctx context.Context, sessionID string, limit int) ([]string, error)
	CreateLogs(ctx context.Context, logs []*models.ClaudeLog) (int, error)
	CreateHook(ctx context.Context, hook *models.ClaudeHook) error
	ListLogs(ctx context.Context, orgID string, skip, limit int) ([]*models.ClaudeLog, int, error)
	ListHooks(ctx context.Context, orgID string, skip, limit int) ([]*models.ClaudeHook, int, error)
}

// QueueRepository defines the typed work queue with lease semantics.
// Delivery is at-least-once; consumers are responsible for idempotency.
type QueueRepository interface {
	Enqueue(ctx context.Context, queue string, payload []byte) (string, error)
	// Lease atomically claims the oldest ready message, or returns nil when
	// the queue is empty.
	Lease(ctx context.Context, queue, workerID string, leaseDuration time.Duration) (*models.QueueMessage, error)
	Ack(ctx context.Context, msgID string) error
	// Nack returns the message to ready after the given delay and increments
	// the attempt counter.
	Nack(ctx context.Context, msgID string, requeueAfter time.Duration) error
	// ReapExpired restores messages whose lease expired. Returns the count.
	ReapExpired(ctx context.Context) (int64, error)
}

// InvitationRepository defines methods for invitation/verification records.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, token string, at time.Time) error
	CreateVerification(ctx context.Context, v *models.EmailVerification) error
	UseVerification(ctx context.Context, token string, at time.Time) (*models.EmailVerification, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	User        UserRepository
	Organization OrganizationRepository
	AccessToken AccessTokenRepository
	Document    DocumentRepository
	Tag         TagRepository
	Schema      SchemaRepository
	Prompt      PromptRepository
	Form        FormRepository
	Result      ResultRepository
	Submission  SubmissionRepository
	Payments    PaymentsRepository
	LLMProvider LLMProviderRepository
	Telemetry   TelemetryRepository
	Claude      ClaudeRepository
	Queue       QueueRepository
	Invitation  InvitationRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:         NewSQLiteUserRepository(db),
		Organization: NewSQLiteOrganizationRepository(db),
		AccessToken:  NewSQLiteAccessTokenRepository(db),
		Document:     NewSQLiteDocumentRepository(db),
		Tag:          NewSQLiteTagRepository(db),
		Schema:       NewSQLiteSchemaRepository(db),
		Prompt:       NewSQLitePromptRepository(db),
		Form:         NewSQLiteFormRepository(db),
		Result:       NewSQLiteResultRepository(db),
		Submission:   NewSQLiteSubmissionRepository(db),
		Payments:     NewSQLitePaymentsRepository(db),
		LLMProvider:  NewSQLiteLLMProviderRepository(db),
		Telemetry:    NewSQLiteTelemetryRepository(db),
		Claude:       NewSQLiteClaudeRepository(db),
		Queue:        NewSQLiteQueueRepository(db),
		Invitation:   NewSQLiteInvitationRepository(db),
	}
}
