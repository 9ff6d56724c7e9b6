package storage

// Local cache schema. This is a thin client-side cache, not the system of
// record: everything here can be rebuilt from the backend.
const schema = `
CREATE TABLE IF NOT EXISTS credentials (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    user_id TEXT NOT NULL,
    auth_token TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_cache (
    chat_id TEXT PRIMARY KEY,
    client_id TEXT NOT NULL,
    client_name TEXT,
    service_id TEXT,
    service_title TEXT,
    last_message_at INTEGER NOT NULL DEFAULT 0,
    unread_count INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_cache_last_message
    ON chat_cache(last_message_at DESC);
`
