// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal media manager flow, either at
// initial startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_documents",
			Up: []string{
				`CREATE TABLE image(
					oid TEXT PRIMARY KEY,
					rev INTEGER NOT NULL,
					seq BIGSERIAL NOT NULL,
					orig_id TEXT,
					batch_id TEXT,
					app_id TEXT,
					in_trash BOOLEAN NOT NULL DEFAULT FALSE,
					data BYTEA NOT NULL
				)`,
				`CREATE INDEX image_seq ON image(seq)`,
				`CREATE INDEX image_orig_id ON image(orig_id)`,
				`CREATE INDEX image_batch_id ON image(batch_id)`,
				`CREATE TABLE image_tag(
					image_oid TEXT NOT NULL REFERENCES image(oid) ON DELETE CASCADE,
					tag TEXT NOT NULL,
					PRIMARY KEY(image_oid, tag)
				)`,
				`CREATE INDEX image_tag_tag ON image_tag(tag)`,
				`CREATE TABLE import_batch(
					oid TEXT PRIMARY KEY,
					rev INTEGER NOT NULL,
					created_ns BIGINT NOT NULL,
					app_id TEXT,
					data BYTEA NOT NULL
				)`,
				`CREATE INDEX import_batch_created ON import_batch(created_ns DESC, oid DESC)`,
			},
			Down: []string{
				`DROP TABLE image_tag`,
				`DROP TABLE image`,
				`DROP TABLE import_batch`,
			},
		},
		{
			Id: "2_changes",
			Up: []string{
				`CREATE TABLE doc_change(
					seq BIGSERIAL PRIMARY KEY,
					doc_type TEXT NOT NULL,
					op INTEGER NOT NULL,
					oid TEXT NOT NULL,
					orig_id TEXT,
					app_id TEXT,
					data BYTEA NOT NULL
				)`,
				`CREATE TABLE sync_state(
					oid TEXT PRIMARY KEY,
					status TEXT NOT NULL,
					started_at TIMESTAMP WITH TIME ZONE,
					completed_at TIMESTAMP WITH TIME ZONE,
					docs_read INTEGER NOT NULL DEFAULT 0,
					docs_written INTEGER NOT NULL DEFAULT 0,
					error TEXT
				)`,
			},
			Down: []string{
				`DROP TABLE sync_state`,
				`DROP TABLE doc_change`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
