package storage

const schema = `
-- The 'tunes' table mirrors the authoritative remote rows the user can see.
-- owner_id is '' for public tunes; deletions are tombstones so they propagate.
CREATE TABLE IF NOT EXISTS tunes (
    id TEXT PRIMARY KEY,
    genre TEXT NOT NULL,
    owner_id TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    last_modified_at DATETIME NOT NULL
);

-- The 'repertoire' table links a playlist to the tunes it practices.
-- 'scheduled' overrides the due date derived from practice records.
CREATE TABLE IF NOT EXISTS repertoire (
    playlist_id TEXT NOT NULL,
    tune_id TEXT NOT NULL,
    scheduled DATETIME,
    learned INTEGER NOT NULL DEFAULT 0,
    goal TEXT NOT NULL DEFAULT '',
    explicit_add INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    last_modified_at DATETIME NOT NULL,

    PRIMARY KEY (playlist_id, tune_id)
);

-- Append-only practice evaluations. Superseded rows are never edited.
CREATE TABLE IF NOT EXISTS practice_records (
    id TEXT PRIMARY KEY,
    tune_id TEXT NOT NULL,
    playlist_id TEXT NOT NULL,
    practiced_at DATETIME NOT NULL,
    rating INTEGER NOT NULL,
    state INTEGER NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    interval_days INTEGER NOT NULL,
    due DATETIME NOT NULL,
    lapses INTEGER NOT NULL DEFAULT 0
);

-- Materialized practice queue, regenerated wholesale on rebuild triggers.
CREATE TABLE IF NOT EXISTS practice_queue (
    playlist_id TEXT NOT NULL,
    tune_id TEXT NOT NULL,
    bucket INTEGER NOT NULL,
    order_index INTEGER NOT NULL,
    completed_at DATETIME,

    PRIMARY KEY (playlist_id, tune_id)
);

CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    tune_id TEXT NOT NULL,
    display_order INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    last_modified_at DATETIME NOT NULL
);

-- 'refs' rather than 'references', which is a reserved word in SQL.
CREATE TABLE IF NOT EXISTS refs (
    id TEXT PRIMARY KEY,
    tune_id TEXT NOT NULL,
    display_order INTEGER NOT NULL DEFAULT 0,
    url TEXT NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    last_modified_at DATETIME NOT NULL
);

-- Durable ordered log of local mutations awaiting remote delivery.
-- The autoincrement id doubles as the per-store sequence number.
CREATE TABLE IF NOT EXISTS outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    row_id TEXT NOT NULL,
    op TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- Sync bookkeeping: pull watermark, initial-sync marker.
CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tunes_genre ON tunes(genre);
CREATE INDEX IF NOT EXISTS idx_notes_tune ON notes(tune_id);
CREATE INDEX IF NOT EXISTS idx_refs_tune ON refs(tune_id);
CREATE INDEX IF NOT EXISTS idx_practice_tune ON practice_records(playlist_id, tune_id, practiced_at);
CREATE INDEX IF NOT EXISTS idx_outbox_row ON outbox(kind, row_id);
`
