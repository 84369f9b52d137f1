package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250614-104500",
		Description: "Telemetry ingest tables",
		Up: []string{
			// Payloads (resource spans, data points, log bodies) are stored
			// verbatim as JSON text.
			`CREATE TABLE IF NOT EXISTS telemetry_traces (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				trace_id TEXT NOT NULL DEFAULT '',
				span_count INTEGER NOT NULL DEFAULT 0,
				payload TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				uploaded_by TEXT NOT NULL,
				tag_ids TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_telemetry_traces_org ON telemetry_traces(organization_id, upload_date)`,

			`CREATE TABLE IF NOT EXISTS telemetry_metrics (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				uploaded_by TEXT NOT NULL,
				tag_ids TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_telemetry_metrics_org ON telemetry_metrics(organization_id, upload_date)`,
			`CREATE INDEX IF NOT EXISTS idx_telemetry_metrics_name ON telemetry_metrics(organization_id, name)`,

			`CREATE TABLE IF NOT EXISTS telemetry_logs (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				severity TEXT NOT NULL DEFAULT 'INFO',
				body TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				uploaded_by TEXT NOT NULL,
				tag_ids TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_telemetry_logs_org ON telemetry_logs(organization_id, upload_date)`,
		},
	})
}
