package repository

const schema = `
CREATE TABLE IF NOT EXISTS game_master (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	is_available INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS availability (
	gm_id TEXT NOT NULL,
	date TEXT NOT NULL,
	time_slots TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (gm_id, date),
	FOREIGN KEY (gm_id) REFERENCES game_master(id)
);

CREATE TABLE IF NOT EXISTS game (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	average_duration INTEGER NOT NULL DEFAULT 0,
	minimum_break_minutes INTEGER
);

CREATE TABLE IF NOT EXISTS competency (
	gm_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	PRIMARY KEY (gm_id, game_id),
	FOREIGN KEY (gm_id) REFERENCES game_master(id)
);

CREATE TABLE IF NOT EXISTS game_mapping (
	pattern TEXT PRIMARY KEY,
	game_id TEXT NOT NULL,
	game_name TEXT NOT NULL,
	average_duration INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS activity (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	date TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	assigned_gm_id TEXT,
	status TEXT NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_activity_pending ON activity (status, date, start_time);

CREATE TABLE IF NOT EXISTS assignment_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	activity_id TEXT NOT NULL,
	gm_id TEXT NOT NULL,
	assigned_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assignment_log_run ON assignment_log (run_id);
`
