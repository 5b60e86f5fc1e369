package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	once sync.Once
)

func Init(dbPath string) error {
	var err error
	once.Do(func() {
		// 确保数据目录存在
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err = os.MkdirAll(dir, 0755); err != nil {
				return
			}
		}

		dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return
		}
		if err = db.Ping(); err != nil {
			return
		}

		// SQLite 单写多读
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		err = createTables()
		if err != nil {
			return
		}
		err = runMigrations()
	})
	return err
}

func GetDB() *sql.DB {
	return db
}

func createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

	CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL,
		container TEXT NOT NULL DEFAULT '',
		api_key_enc TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		models_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_channels_type_enabled ON channels(type, enabled);

	CREATE TABLE IF NOT EXISTS tokenizer_states (
		channel_id INTEGER NOT NULL,
		model_name TEXT NOT NULL,
		status TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT -1,
		message TEXT NOT NULL DEFAULT '',
		last_updated DATETIME,
		checked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (channel_id, model_name),
		FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

func runMigrations() error {
	_, _ = db.Exec(`ALTER TABLE channels ADD COLUMN container TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE channels ADD COLUMN api_key_enc TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tokenizer_states ADD COLUMN checked_at DATETIME`)
	return nil
}

func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
