// Package repo содержит Postgres-репозитории:
//
//   - job_repo.go — записи jobs (реализация queue.JobStore)
//   - plan_repo.go — планы и их одобрение
//   - dedup_repo.go — маркеры дедупликации (реализация failsafe.MarkerStore)
//
// Ожидаемая схема:
//
//	CREATE TABLE jobs (
//	    id            text PRIMARY KEY,
//	    user_id       text,
//	    queue         text NOT NULL,
//	    plan_id       uuid,
//	    payload       bytea,
//	    priority      int NOT NULL DEFAULT 0,
//	    status        text NOT NULL,
//	    progress      int NOT NULL DEFAULT 0,
//	    last_sequence bigint NOT NULL DEFAULT 0,
//	    attempts      int NOT NULL DEFAULT 0,
//	    result        jsonb,
//	    error         text,
//	    metadata      jsonb,
//	    created_at    timestamptz NOT NULL,
//	    updated_at    timestamptz NOT NULL,
//	    completed_at  timestamptz
//	);
//
//	CREATE TABLE plans (
//	    id                     uuid PRIMARY KEY,
//	    user_id                text,
//	    origin_query           text NOT NULL,
//	    tasks                  jsonb NOT NULL,
//	    estimated_time_seconds float8 NOT NULL,
//	    estimated_cost         float8 NOT NULL,
//	    risk_level             text NOT NULL,
//	    requires_approval      bool NOT NULL,
//	    approved               bool NOT NULL,
//	    created_at             timestamptz NOT NULL
//	);
//
//	CREATE TABLE dedup_markers (
//	    key        text PRIMARY KEY,
//	    expires_at timestamptz NOT NULL
//	);
package repo
