package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250601-000000",
		Description: "Initial schema",
		Up: []string{
			// Users - system accounts. Email is the login identity.
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL COLLATE NOCASE UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'user',
				email_verified INTEGER NOT NULL DEFAULT 0,
				has_password INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Organizations - tenancy boundary. Names unique case-insensitively.
			`CREATE TABLE IF NOT EXISTS organizations (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL COLLATE NOCASE UNIQUE,
				type TEXT NOT NULL DEFAULT 'individual',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS organization_members (
				organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role TEXT NOT NULL DEFAULT 'user',
				PRIMARY KEY (organization_id, user_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_org_members_user ON organization_members(user_id)`,

			// Access tokens - opaque bearer tokens, stored encrypted.
			// token_hash is the SHA-256 lookup key; organization_id NULL means
			// account-level.
			`CREATE TABLE IF NOT EXISTS access_tokens (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				organization_id TEXT,
				name TEXT NOT NULL,
				token_encrypted TEXT NOT NULL,
				token_hash TEXT NOT NULL UNIQUE,
				token_prefix TEXT NOT NULL,
				lifetime INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_access_tokens_user ON access_tokens(user_id)`,

			// Documents - tag_ids and metadata stored as JSON text.
			`CREATE TABLE IF NOT EXISTS docs (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				user_file_name TEXT NOT NULL,
				blob_name TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				uploaded_by TEXT NOT NULL,
				state TEXT NOT NULL DEFAULT 'uploaded',
				tag_ids TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}',
				n_pages INTEGER NOT NULL DEFAULT 0,
				ocr_date TEXT,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_docs_org ON docs(organization_id, upload_date)`,
			`CREATE INDEX IF NOT EXISTS idx_docs_state ON docs(state)`,

			// Tags - names unique per org, case-insensitive.
			`CREATE TABLE IF NOT EXISTS tags (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL COLLATE NOCASE,
				color TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				created_by TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (organization_id, name)
			)`,

			// Schemas - parent + revisions. Versions are gap-free per schema_id.
			`CREATE TABLE IF NOT EXISTS schemas (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL COLLATE NOCASE,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (organization_id, name)
			)`,
			`CREATE TABLE IF NOT EXISTS schema_revisions (
				schema_revid TEXT PRIMARY KEY,
				schema_id TEXT NOT NULL REFERENCES schemas(id) ON DELETE CASCADE,
				schema_version INTEGER NOT NULL,
				response_format TEXT NOT NULL,
				created_at TEXT NOT NULL,
				created_by TEXT NOT NULL,
				UNIQUE (schema_id, schema_version)
			)`,

			// Prompts - parent + revisions.
			`CREATE TABLE IF NOT EXISTS prompts (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL COLLATE NOCASE,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (organization_id, name)
			)`,
			`CREATE TABLE IF NOT EXISTS prompt_revisions (
				prompt_revid TEXT PRIMARY KEY,
				prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
				prompt_version INTEGER NOT NULL,
				content TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				tag_ids TEXT NOT NULL DEFAULT '[]',
				schema_id TEXT,
				schema_version INTEGER,
				organization_id TEXT NOT NULL,
				created_at TEXT NOT NULL,
				created_by TEXT NOT NULL,
				UNIQUE (prompt_id, prompt_version)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_prompt_revisions_org ON prompt_revisions(organization_id)`,

			// Forms - parent + revisions. response_format holds the Form.io
			// definition and field mapping verbatim.
			`CREATE TABLE IF NOT EXISTS forms (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL COLLATE NOCASE,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (organization_id, name)
			)`,
			`CREATE TABLE IF NOT EXISTS form_revisions (
				form_revid TEXT PRIMARY KEY,
				form_id TEXT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
				form_version INTEGER NOT NULL,
				response_format TEXT NOT NULL,
				tag_ids TEXT NOT NULL DEFAULT '[]',
				organization_id TEXT NOT NULL,
				created_at TEXT NOT NULL,
				created_by TEXT NOT NULL,
				UNIQUE (form_id, form_version)
			)`,

			// LLM results - one row per (document, prompt revision).
			`CREATE TABLE IF NOT EXISTS llm_runs (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				document_id TEXT NOT NULL,
				prompt_revid TEXT NOT NULL,
				prompt_id TEXT NOT NULL,
				prompt_version INTEGER NOT NULL,
				llm_result TEXT NOT NULL,
				updated_llm_result TEXT NOT NULL,
				is_edited INTEGER NOT NULL DEFAULT 0,
				is_verified INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (document_id, prompt_revid)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_llm_runs_doc ON llm_runs(document_id)`,

			// Form submissions - upsert on (document, form revision, org).
			`CREATE TABLE IF NOT EXISTS form_submissions (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				document_id TEXT NOT NULL,
				form_revid TEXT NOT NULL,
				submission_data TEXT NOT NULL,
				submitted_by TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (document_id, form_revid, organization_id)
			)`,

			// LLM providers - admin-configured upstreams.
			`CREATE TABLE IF NOT EXISTS llm_providers (
				name TEXT PRIMARY KEY,
				enabled INTEGER NOT NULL DEFAULT 0,
				api_key_encrypted TEXT NOT NULL DEFAULT '',
				base_url TEXT NOT NULL DEFAULT '',
				enabled_models TEXT NOT NULL DEFAULT '[]',
				updated_at TEXT NOT NULL
			)`,

			// Payments - stacked credit balances per org.
			`CREATE TABLE IF NOT EXISTS payments_customers (
				organization_id TEXT PRIMARY KEY,
				granted_credits REAL NOT NULL DEFAULT 0,
				granted_credits_used REAL NOT NULL DEFAULT 0,
				purchased_credits REAL NOT NULL DEFAULT 0,
				purchased_credits_used REAL NOT NULL DEFAULT 0,
				subscription_spu_limit REAL NOT NULL DEFAULT 0,
				subscription_spus_used REAL NOT NULL DEFAULT 0,
				subscription_period_start TEXT,
				subscription_period_end TEXT,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS payments_usage_records (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				spus REAL NOT NULL,
				operation TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT '',
				timestamp TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_org_ts ON payments_usage_records(organization_id, timestamp)`,

			// Job queue - at-least-once delivery with lease expiry.
			`CREATE TABLE IF NOT EXISTS job_queue (
				msg_id TEXT PRIMARY KEY,
				queue TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'ready',
				attempts INTEGER NOT NULL DEFAULT 0,
				visible_at TEXT NOT NULL,
				leased_by TEXT,
				lease_expires_at TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_job_queue_ready ON job_queue(queue, status, visible_at, msg_id)`,

			// Invitations and email verifications - records only; mail
			// transport is an external collaborator.
			`CREATE TABLE IF NOT EXISTS invitations (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL COLLATE NOCASE,
				organization_id TEXT,
				role TEXT NOT NULL DEFAULT 'user',
				token TEXT NOT NULL UNIQUE,
				expires_at TEXT NOT NULL,
				accepted_at TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS email_verifications (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				token TEXT NOT NULL UNIQUE,
				expires_at TEXT NOT NULL,
				used_at TEXT,
				created_at TEXT NOT NULL
			)`,
		},
	})
}
