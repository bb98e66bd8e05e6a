package results

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id       BIGSERIAL PRIMARY KEY,
    run_key      TEXT NOT NULL UNIQUE,
    timestamp    TIMESTAMPTZ NOT NULL DEFAULT now(),
    mode         TEXT NOT NULL,
    runs_count   INTEGER NOT NULL,
    test_count   INTEGER NOT NULL DEFAULT 0,
    passed_count INTEGER NOT NULL DEFAULT 0,
    failed_count INTEGER NOT NULL DEFAULT 0,
    duration     DOUBLE PRECISION NOT NULL DEFAULT 0,
    config_json  JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS test_results (
    result_id          BIGSERIAL PRIMARY KEY,
    run_id             BIGINT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
    test_name          TEXT NOT NULL,
    category           TEXT NOT NULL,
    run_number         INTEGER NOT NULL,
    passed             BOOLEAN NOT NULL,
    expected_pass      BOOLEAN NOT NULL,
    actual_pass        BOOLEAN NOT NULL,
    reason             TEXT,
    assistant_response TEXT,
    full_transcript    TEXT,
    duration           DOUBLE PRECISION NOT NULL,
    retry_count        INTEGER NOT NULL,
    session_id         TEXT
);

CREATE TABLE IF NOT EXISTS verdicts (
    verdict_id BIGSERIAL PRIMARY KEY,
    result_id  BIGINT NOT NULL UNIQUE REFERENCES test_results (result_id) ON DELETE CASCADE,
    effective  BOOLEAN NOT NULL,
    safe       BOOLEAN NOT NULL,
    clear      BOOLEAN NOT NULL,
    reasoning  TEXT NOT NULL,
    passed     BOOLEAN NOT NULL,
    confidence TEXT
);

CREATE TABLE IF NOT EXISTS interrogations (
    interrogation_id BIGSERIAL PRIMARY KEY,
    result_id        BIGINT NOT NULL REFERENCES test_results (result_id) ON DELETE CASCADE,
    question         TEXT NOT NULL,
    answer           TEXT NOT NULL,
    error            TEXT
);

CREATE INDEX IF NOT EXISTS idx_test_results_run_id ON test_results (run_id);
CREATE INDEX IF NOT EXISTS idx_test_results_test_name ON test_results (test_name);
CREATE INDEX IF NOT EXISTS idx_test_results_category ON test_results (category);
CREATE INDEX IF NOT EXISTS idx_interrogations_result_id ON interrogations (result_id);
`
