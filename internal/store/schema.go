package store

// Schema v1 - collection run journal
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per collection run of a source
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  domain TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'running',
  started_at DATETIME NOT NULL,
  finished_at DATETIME,
  pages_ok INTEGER DEFAULT 0,
  pages_failed INTEGER DEFAULT 0,
  row_count INTEGER DEFAULT 0,
  output_path TEXT
);

-- Outcome of every page requested during a run
CREATE TABLE IF NOT EXISTS page_results (
  run_id TEXT REFERENCES runs(id) ON DELETE CASCADE,
  page INTEGER NOT NULL,
  status TEXT NOT NULL,
  row_count INTEGER DEFAULT 0,
  error TEXT,
  fetched_at DATETIME NOT NULL,
  PRIMARY KEY (run_id, page)
);
`

// Schema v2 - report query indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source, started_at);
CREATE INDEX IF NOT EXISTS idx_page_results_status ON page_results(status);
`
