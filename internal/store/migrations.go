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

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	listing_id  TEXT NOT NULL DEFAULT '',
	is_read     INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (owner_id, id)
);

CREATE TABLE IF NOT EXISTS system_notifications (
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	is_read    INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	related_id TEXT NOT NULL DEFAULT '',
	link_url   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON system_notifications(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
