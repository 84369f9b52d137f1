package handlers

import (
	"context"
	"encoding/json"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SchemaOutput wraps a single schema revision.
type SchemaOutput struct {
	Body *models.SchemaRevision
}

// CreateSchemaInput is the body of POST /orgs/{org}/schemas.
type CreateSchemaInput struct {
	OrgPath
	Body struct {
		Name           string          `json:"name"`
		ResponseFormat json.RawMessage `json:"response_format" doc:"JSON schema wrapped in a json_schema response format"`
	}
}

// CreateSchema creates a schema. Re-creating an existing name produces a new
// revision under the same logical id.
func (h *Handlers) CreateSchema(ctx context.Context, input *CreateSchemaInput) (*SchemaOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Schema.Create(ctx, input.Org, id.UserID, input.Body.Name, input.Body.ResponseFormat)
	if err != nil {
		return nil, mapError(err)
	}
	return &SchemaOutput{Body: rev}, nil
}

// UpdateSchemaInput is the body of PUT /orgs/{org}/schemas/{schema_id}.
type UpdateSchemaInput struct {
	OrgPath
	SchemaID string `path:"schema_id"`
	Body     struct {
		Name           string          `json:"name,omitempty"`
		ResponseFormat json.RawMessage `json:"response_format,omitempty"`
	}
}

// UpdateSchema updates a schema. A changed response format allocates the
// next version; a pure rename keeps the current revision.
func (h *Handlers) UpdateSchema(ctx context.Context, input *UpdateSchemaInput) (*SchemaOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Schema.Update(ctx, input.Org, id.UserID, input.SchemaID, input.Body.Name, input.Body.ResponseFormat)
	if err != nil {
		return nil, mapError(err)
	}
	return &SchemaOutput{Body: rev}, nil
}

// GetSchemaInput identifies one schema revision.
type GetSchemaInput struct {
	OrgPath
	RevID string `path:"revid" doc:"Schema revision ID"`
}

// GetSchema returns one schema revision.
func (h *Handlers) GetSchema(ctx context.Context, input *GetSchemaInput) (*SchemaOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Schema.Get(ctx, input.Org, input.RevID)
	if err != nil {
		return nil, mapError(err)
	}
	return &SchemaOutput{Body: rev}, nil
}

// ListSchemasInput filters the schema listing.
type ListSchemasInput struct {
	OrgPath
	Pagination
	NameSearch string `query:"name_search"`
}

// ListSchemasOutput is a page of latest schema revisions.
type ListSchemasOutput struct {
	Body struct {
		Schemas []*models.SchemaRevision `json:"schemas"`
		Total   int                      `json:"total"`
	}
}

// ListSchemas lists the latest revision of each schema.
func (h *Handlers) ListSchemas(ctx context.Context, input *ListSchemasInput) (*ListSchemasOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revs, total, err := h.services.Schema.List(ctx, input.Org, input.NameSearch, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListSchemasOutput{}
	out.Body.Schemas = revs
	out.Body.Total = total
	return out, nil
}

// DeleteSchemaInput identifies the schema to delete.
type DeleteSchemaInput struct {
	OrgPath
	SchemaID string `path:"schema_id"`
}

// DeleteSchema removes a schema and all its revisions. Refused while a
// prompt still pins any revision.
func (h *Handlers) DeleteSchema(ctx context.Context, input *DeleteSchemaInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	if err := h.services.Schema.Delete(ctx, input.Org, input.SchemaID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// ValidateAgainstSchemaInput is the body of POST /orgs/{org}/schemas/{revid}/validate.
type ValidateAgainstSchemaInput struct {
	OrgPath
	RevID string `path:"revid"`
	Body  struct {
		Data json.RawMessage `json:"data"`
	}
}

// ValidateAgainstSchemaOutput reports validation findings.
type ValidateAgainstSchemaOutput struct {
	Body struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors,omitempty"`
	}
}

// ValidateAgainstSchema checks a JSON document against one schema revision.
func (h *Handlers) ValidateAgainstSchema(ctx context.Context, input *ValidateAgainstSchemaInput) (*ValidateAgainstSchemaOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	findings, err := h.services.Schema.ValidateData(ctx, input.Org, input.RevID, input.Body.Data)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ValidateAgainstSchemaOutput{}
	out.Body.Valid = len(findings) == 0
	out.Body.Errors = findings
	return out, nil
}
