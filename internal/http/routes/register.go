package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/http/handlers"
	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// The streaming chat endpoints are raw HTTP and mounted on the router
// directly by the caller.
func Register(api huma.API, h *handlers.Handlers) {
	// Public routes.
	mw.PublicGet(api, "/v0/health", h.Health,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("health"))
	mw.PublicPost(api, "/v0/account/email/verification/{token}", h.VerifyEmail,
		mw.WithTags("Account"),
		mw.WithSummary("Verify an email address"),
		mw.WithOperationID("verifyEmail"))

	// --- Account: users ---
	mw.ProtectedPost(api, "/v0/account/users", h.CreateUser,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("Create user"),
		mw.WithOperationID("createUser"))
	mw.ProtectedPut(api, "/v0/account/users/{id}", h.UpdateUser,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("Update user"),
		mw.WithOperationID("updateUser"))
	mw.ProtectedDelete(api, "/v0/account/users/{id}", h.DeleteUser,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("Delete user"),
		mw.WithOperationID("deleteUser"))
	mw.ProtectedGet(api, "/v0/account/users", h.ListUsers,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("List users"),
		mw.WithOperationID("listUsers"))

	// --- Account: organizations ---
	mw.ProtectedPost(api, "/v0/account/organizations", h.CreateOrganization,
		mw.WithTags("Account"),
		mw.WithSummary("Create organization"),
		mw.WithOperationID("createOrganization"))
	mw.ProtectedPut(api, "/v0/account/organizations/{id}", h.UpdateOrganization,
		mw.WithTags("Account"),
		mw.WithSummary("Update organization"),
		mw.WithOperationID("updateOrganization"))
	mw.ProtectedGet(api, "/v0/account/organizations", h.ListOrganizations,
		mw.WithTags("Account"),
		mw.WithSummary("List organizations"),
		mw.WithOperationID("listOrganizations"))

	// --- Account: invitations and verification ---
	mw.ProtectedPost(api, "/v0/account/email/invitations", h.Invite,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("Invite a user by email"),
		mw.WithOperationID("invite"))
	mw.ProtectedPost(api, "/v0/account/email/invitations/{token}/accept", h.AcceptInvitation,
		mw.WithTags("Account"),
		mw.WithSummary("Accept an invitation"),
		mw.WithOperationID("acceptInvitation"))
	mw.ProtectedPost(api, "/v0/account/email/verification", h.StartEmailVerification,
		mw.WithTags("Account"),
		mw.WithSummary("Request email verification"),
		mw.WithOperationID("startEmailVerification"))

	// --- Account: access tokens ---
	mw.ProtectedPost(api, "/v0/account/tokens", h.CreateAccessToken,
		mw.WithTags("Account"),
		mw.WithSummary("Create access token"),
		mw.WithDescription("Org-scoped tokens require the org admin role. The raw token is returned exactly once."),
		mw.WithOperationID("createAccessToken"))
	mw.ProtectedGet(api, "/v0/account/tokens", h.ListAccessTokens,
		mw.WithTags("Account"),
		mw.WithSummary("List access tokens"),
		mw.WithOperationID("listAccessTokens"))
	mw.ProtectedDelete(api, "/v0/account/tokens/{id}", h.DeleteAccessToken,
		mw.WithTags("Account"),
		mw.WithSummary("Delete access token"),
		mw.WithOperationID("deleteAccessToken"))

	// --- Account: LLM administration ---
	mw.ProtectedGet(api, "/v0/account/llm/providers", h.ListLLMProviders,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("List LLM providers"),
		mw.WithOperationID("listLlmProviders"))
	mw.ProtectedPut(api, "/v0/account/llm/providers", h.UpdateLLMProvider,
		mw.WithAccountAdmin(),
		mw.WithTags("Account"),
		mw.WithSummary("Update LLM provider"),
		mw.WithOperationID("updateLlmProvider"))
	mw.ProtectedGet(api, "/v0/account/llm/models", h.ListLLMModels,
		mw.WithTags("Account"),
		mw.WithSummary("List usable LLM models"),
		mw.WithOperationID("listLlmModels"))

	// --- Documents ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/documents", h.UploadDocuments,
		mw.WithTags("Documents"),
		mw.WithSummary("Upload documents"),
		mw.WithOperationID("uploadDocuments"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/documents", h.ListDocuments,
		mw.WithTags("Documents"),
		mw.WithSummary("List documents"),
		mw.WithOperationID("listDocuments"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/documents/{doc}", h.GetDocument,
		mw.WithTags("Documents"),
		mw.WithSummary("Get document"),
		mw.WithOperationID("getDocument"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/documents/{doc}", h.UpdateDocument,
		mw.WithTags("Documents"),
		mw.WithSummary("Update document"),
		mw.WithOperationID("updateDocument"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/documents/{doc}", h.DeleteDocument,
		mw.WithTags("Documents"),
		mw.WithSummary("Delete document"),
		mw.WithOperationID("deleteDocument"))

	// --- OCR downloads ---
	mw.ProtectedGet(api, "/v0/orgs/{org}/ocr/download/text/{doc}", h.DownloadOCRText,
		mw.WithTags("OCR"),
		mw.WithSummary("Download OCR text"),
		mw.WithOperationID("downloadOcrText"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/ocr/download/blocks/{doc}", h.DownloadOCRBlocks,
		mw.WithTags("OCR"),
		mw.WithSummary("Download OCR blocks"),
		mw.WithOperationID("downloadOcrBlocks"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/ocr/download/metadata/{doc}", h.GetOCRMetadata,
		mw.WithTags("OCR"),
		mw.WithSummary("Get OCR metadata"),
		mw.WithOperationID("getOcrMetadata"))

	// --- Schemas ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/schemas", h.CreateSchema,
		mw.WithTags("Schemas"),
		mw.WithSummary("Create schema"),
		mw.WithOperationID("createSchema"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/schemas", h.ListSchemas,
		mw.WithTags("Schemas"),
		mw.WithSummary("List schemas"),
		mw.WithOperationID("listSchemas"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/schemas/{revid}", h.GetSchema,
		mw.WithTags("Schemas"),
		mw.WithSummary("Get schema revision"),
		mw.WithOperationID("getSchema"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/schemas/{schema_id}", h.UpdateSchema,
		mw.WithTags("Schemas"),
		mw.WithSummary("Update schema"),
		mw.WithOperationID("updateSchema"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/schemas/{schema_id}", h.DeleteSchema,
		mw.WithTags("Schemas"),
		mw.WithSummary("Delete schema"),
		mw.WithOperationID("deleteSchema"))
	mw.ProtectedPost(api, "/v0/orgs/{org}/schemas/{revid}/validate", h.ValidateAgainstSchema,
		mw.WithTags("Schemas"),
		mw.WithSummary("Validate data against a schema revision"),
		mw.WithOperationID("validateAgainstSchema"))

	// --- Prompts ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/prompts", h.CreatePrompt,
		mw.WithTags("Prompts"),
		mw.WithSummary("Create prompt"),
		mw.WithOperationID("createPrompt"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/prompts", h.ListPrompts,
		mw.WithTags("Prompts"),
		mw.WithSummary("List prompts"),
		mw.WithOperationID("listPrompts"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/prompts/{revid}", h.GetPrompt,
		mw.WithTags("Prompts"),
		mw.WithSummary("Get prompt revision"),
		mw.WithOperationID("getPrompt"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/prompts/{prompt_id}", h.UpdatePrompt,
		mw.WithTags("Prompts"),
		mw.WithSummary("Update prompt"),
		mw.WithOperationID("updatePrompt"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/prompts/{prompt_id}", h.DeletePrompt,
		mw.WithTags("Prompts"),
		mw.WithSummary("Delete prompt"),
		mw.WithOperationID("deletePrompt"))

	// --- Forms ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/forms", h.CreateForm,
		mw.WithTags("Forms"),
		mw.WithSummary("Create form"),
		mw.WithOperationID("createForm"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/forms", h.ListForms,
		mw.WithTags("Forms"),
		mw.WithSummary("List forms"),
		mw.WithOperationID("listForms"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/forms/{revid}", h.GetForm,
		mw.WithTags("Forms"),
		mw.WithSummary("Get form revision"),
		mw.WithOperationID("getForm"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/forms/{form_id}", h.UpdateForm,
		mw.WithTags("Forms"),
		mw.WithSummary("Update form"),
		mw.WithOperationID("updateForm"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/forms/{form_id}", h.DeleteForm,
		mw.WithTags("Forms"),
		mw.WithSummary("Delete form"),
		mw.WithOperationID("deleteForm"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/forms/{revid}/submissions/{doc}", h.SubmitForm,
		mw.WithTags("Forms"),
		mw.WithSummary("Submit form data"),
		mw.WithOperationID("submitForm"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/forms/{revid}/submissions/{doc}", h.GetFormSubmission,
		mw.WithTags("Forms"),
		mw.WithSummary("Get form submission"),
		mw.WithOperationID("getFormSubmission"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/forms/{revid}/submissions/{doc}", h.DeleteFormSubmission,
		mw.WithTags("Forms"),
		mw.WithSummary("Delete form submission"),
		mw.WithOperationID("deleteFormSubmission"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/forms/submissions/{doc}", h.ListFormSubmissions,
		mw.WithTags("Forms"),
		mw.WithSummary("List form submissions for a document"),
		mw.WithOperationID("listFormSubmissions"))

	// --- Tags ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/tags", h.CreateTag,
		mw.WithTags("Tags"),
		mw.WithSummary("Create tag"),
		mw.WithOperationID("createTag"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/tags", h.ListTags,
		mw.WithTags("Tags"),
		mw.WithSummary("List tags"),
		mw.WithOperationID("listTags"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/tags/{id}", h.GetTag,
		mw.WithTags("Tags"),
		mw.WithSummary("Get tag"),
		mw.WithOperationID("getTag"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/tags/{id}", h.UpdateTag,
		mw.WithTags("Tags"),
		mw.WithSummary("Update tag"),
		mw.WithOperationID("updateTag"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/tags/{id}", h.DeleteTag,
		mw.WithTags("Tags"),
		mw.WithSummary("Delete tag"),
		mw.WithOperationID("deleteTag"))

	// --- LLM runs and results ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/llm/run/{doc}", h.RunLLM,
		mw.WithTags("LLM"),
		mw.WithSummary("Run an extraction"),
		mw.WithDescription("Queues the extraction and optionally waits. When the wait budget expires the response reports status queued."),
		mw.WithOperationID("runLlm"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/llm/result/{doc}", h.GetLLMResult,
		mw.WithTags("LLM"),
		mw.WithSummary("Get extraction result"),
		mw.WithOperationID("getLlmResult"))
	mw.ProtectedPut(api, "/v0/orgs/{org}/llm/result/{doc}", h.UpdateLLMResult,
		mw.WithTags("LLM"),
		mw.WithSummary("Edit extraction result"),
		mw.WithOperationID("updateLlmResult"))
	mw.ProtectedDelete(api, "/v0/orgs/{org}/llm/result/{doc}", h.DeleteLLMResult,
		mw.WithTags("LLM"),
		mw.WithSummary("Delete extraction result"),
		mw.WithOperationID("deleteLlmResult"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/llm/results/{doc}", h.DownloadLLMResults,
		mw.WithTags("LLM"),
		mw.WithSummary("Download all results for a document"),
		mw.WithOperationID("downloadLlmResults"))

	// --- Telemetry ---
	mw.ProtectedPost(api, "/v0/orgs/{org}/telemetry/traces", h.IngestTraces,
		mw.WithTags("Telemetry"),
		mw.WithSummary("Ingest traces"),
		mw.WithOperationID("ingestTraces"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/telemetry/traces", h.ListTraces,
		mw.WithTags("Telemetry"),
		mw.WithSummary("List traces"),
		mw.WithOperationID("listTraces"))
	mw.ProtectedPost(api, "/v0/orgs/{org}/telemetry/metrics", h.IngestMetrics,
		mw.WithTags("Telemetry"),
		mw.WithSummary("Ingest metrics"),
		mw.WithOperationID("ingestMetrics"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/telemetry/metrics", h.ListMetrics,
		mw.WithTags("Telemetry"),
		mw.WithSummary("List metrics"),
		mw.WithOperationID("listMetrics"))
	mw.ProtectedPost(api, "/v0/orgs/{org}/telemetry/logs", h.IngestLogs,
		mw.WithTags("Telemetry"),
		mw.WithSummary("Ingest logs"),
		mw.WithOperationID("ingestLogs"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/telemetry/logs", h.ListLogs,
		mw.WithTags("Telemetry"),
		mw.WithSummary("List logs"),
		mw.WithOperationID("listLogs"))

	// --- Claude ingest ---
	mw.ProtectedPost(api, "/v0/claude/log", h.IngestClaudeLog,
		mw.WithTags("Claude"),
		mw.WithSummary("Ingest a session log batch"),
		mw.WithOperationID("ingestClaudeLog"))
	mw.ProtectedPost(api, "/v0/claude/hook", h.IngestClaudeHook,
		mw.WithTags("Claude"),
		mw.WithSummary("Ingest a hook event"),
		mw.WithOperationID("ingestClaudeHook"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/claude/logs", h.ListClaudeLogs,
		mw.WithTags("Claude"),
		mw.WithSummary("List session log entries"),
		mw.WithOperationID("listClaudeLogs"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/claude/hooks", h.ListClaudeHooks,
		mw.WithTags("Claude"),
		mw.WithSummary("List hook events"),
		mw.WithOperationID("listClaudeHooks"))

	// --- Payments ---
	mw.ProtectedGet(api, "/v0/orgs/{org}/payments/usage/range", h.GetUsageRange,
		mw.WithTags("Payments"),
		mw.WithSummary("Get usage over a date range"),
		mw.WithOperationID("getUsageRange"))
	mw.ProtectedGet(api, "/v0/orgs/{org}/payments/credits", h.GetCredits,
		mw.WithTags("Payments"),
		mw.WithSummary("Get credit balances"),
		mw.WithOperationID("getCredits"))
}
