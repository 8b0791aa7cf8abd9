package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling and prepared statements.
type DB struct {
	*sql.DB
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// NewDB opens (or creates) the student store under dataDir.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "edumetric.db")
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{
		DB:       db,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized", "path", dbPath)

	return database, nil
}

// migrate creates the necessary tables.
func (db *DB) migrate() error {
	queries := []string{
		// Students table: raw academic-record fields plus the computed
		// score/label columns written back by the batch pipeline.
		`CREATE TABLE IF NOT EXISTS students (
			rno TEXT PRIMARY KEY,
			name TEXT,
			dept TEXT,
			year INTEGER,
			curr_sem INTEGER,
			sem1 REAL, sem2 REAL, sem3 REAL, sem4 REAL,
			sem5 REAL, sem6 REAL, sem7 REAL, sem8 REAL,
			internal_marks REAL,
			behavior_score_10 REAL,
			total_days_curr REAL,
			attended_days_curr REAL,
			prev_attendance_perc REAL,
			past_avg REAL DEFAULT 0.0,
			past_count INTEGER DEFAULT 0,
			internal_pct REAL DEFAULT 0.0,
			attendance_pct REAL DEFAULT 0.0,
			behavior_pct REAL DEFAULT 0.0,
			performance_trend REAL DEFAULT 0.0,
			performance_overall REAL DEFAULT 0.0,
			risk_score REAL DEFAULT 0.0,
			dropout_score REAL DEFAULT 0.0,
			performance_label TEXT DEFAULT 'unknown',
			risk_label TEXT DEFAULT 'unknown',
			dropout_label TEXT DEFAULT 'unknown',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Mentor alert audit trail.
		`CREATE TABLE IF NOT EXISTS alert_logs (
			id TEXT PRIMARY KEY,
			rno TEXT NOT NULL,
			recipient TEXT NOT NULL,
			performance_label TEXT,
			risk_label TEXT,
			dropout_label TEXT,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_students_dept ON students(dept)`,
		`CREATE INDEX IF NOT EXISTS idx_students_year ON students(year)`,
		`CREATE INDEX IF NOT EXISTS idx_students_risk_label ON students(risk_label)`,
		`CREATE INDEX IF NOT EXISTS idx_students_dropout_label ON students(dropout_label)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_logs_rno ON alert_logs(rno)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements.
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"get_student":    `SELECT * FROM students WHERE rno = ?`,
		"delete_student": `DELETE FROM students WHERE rno = ?`,
		"count_students": `SELECT COUNT(*) FROM students`,

		"insert_alert_log": `INSERT INTO alert_logs (id, rno, recipient, performance_label, risk_label, dropout_label, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement.
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

// Close closes the prepared statements and the connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
