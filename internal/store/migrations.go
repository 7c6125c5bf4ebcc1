package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT 'null',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS read_messages (
	message_id TEXT PRIMARY KEY,
	read_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recent_emails (
	domain        TEXT NOT NULL,
	email_key     TEXT NOT NULL,
	email         TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME NOT NULL,
	PRIMARY KEY (domain, email_key)
);

CREATE TABLE IF NOT EXISTS drafts (
	user_id  TEXT PRIMARY KEY,
	payload  TEXT NOT NULL DEFAULT '{}',
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rate_limits (
	user_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recent_emails_domain
	ON recent_emails(domain, last_accessed);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_read_messages_read_at
	ON read_messages(read_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
