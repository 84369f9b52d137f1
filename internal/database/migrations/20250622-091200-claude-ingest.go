package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250622-091200",
		Description: "Claude log and hook ingest tables",
		Up: []string{
			// entry_uuid is the client-side record id; the unique constraint
			// backs forward-insert deduplication within a session.
			`CREATE TABLE IF NOT EXISTS claude_logs (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				session_id TEXT NOT NULL,
				entry_uuid TEXT NOT NULL,
				payload TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				uploaded_by TEXT NOT NULL,
				UNIQUE (session_id, entry_uuid)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_claude_logs_org ON claude_logs(organization_id, upload_date)`,
			`CREATE INDEX IF NOT EXISTS idx_claude_logs_session ON claude_logs(session_id, id)`,

			`CREATE TABLE IF NOT EXISTS claude_hooks (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				hook_event TEXT NOT NULL,
				session_id TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				uploaded_by TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_claude_hooks_org ON claude_hooks(organization_id, upload_date)`,
		},
	})
}
