package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edumetric/edumetric/internal/types"
)

// ErrStudentNotFound is returned for lookups that match no row.
var ErrStudentNotFound = errors.New("student not found")

// studentColumns is the write-side column list; reads use rows.Columns so
// schema additions flow through without touching the scan code.
var studentColumns = []string{
	"rno", "name", "dept", "year", "curr_sem",
	"sem1", "sem2", "sem3", "sem4", "sem5", "sem6", "sem7", "sem8",
	"internal_marks", "behavior_score_10",
	"total_days_curr", "attended_days_curr", "prev_attendance_perc",
	"past_avg", "past_count", "internal_pct", "attendance_pct",
	"behavior_pct", "performance_trend",
	"performance_overall", "risk_score", "dropout_score",
	"performance_label", "risk_label", "dropout_label",
}

// Repository is the record source backed by sqlite. It is the single
// case-normalizing adapter: every record it hands out carries canonical
// UPPERCASE field keys regardless of how the storage backend cases them.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// All fetches every student record.
func (r *Repository) All(ctx context.Context) ([]types.StudentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT * FROM students`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ByRNO fetches one student by register number.
func (r *Repository) ByRNO(ctx context.Context, rno string) (types.StudentRecord, error) {
	stmt, err := r.db.GetPreparedStatement("get_student")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, rno)
	if err != nil {
		return nil, fmt.Errorf("failed to query student %s: %w", rno, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrStudentNotFound
	}
	return records[0], nil
}

// Search fetches students whose register number or name contains the given
// fragments, capped at limit rows.
func (r *Repository) Search(ctx context.Context, rno, name string, limit int) ([]types.StudentRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM students WHERE 1=1`
	args := make([]any, 0, 3)
	if rno != "" {
		query += ` AND rno LIKE ?`
		args = append(args, "%"+rno+"%")
	}
	if name != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+name+"%")
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Exists reports whether a register number is already taken.
func (r *Repository) Exists(ctx context.Context, rno string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students WHERE rno = ?`, rno).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}
	return count > 0, nil
}

// Insert stores a new student row.
func (r *Repository) Insert(ctx context.Context, rec types.StudentRecord) error {
	now := time.Now()
	cols := strings.Join(studentColumns, ", ")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(studentColumns)), ", ")

	args := recordArgs(rec)
	args = append(args, now, now)

	query := fmt.Sprintf(`INSERT INTO students (%s, created_at, updated_at) VALUES (%s, ?, ?)`,
		cols, placeholders)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// Upsert inserts or overwrites a student row keyed by RNO. The overwrite
// semantics keep concurrent score write-backs idempotent.
func (r *Repository) Upsert(ctx context.Context, rec types.StudentRecord) error {
	now := time.Now()
	cols := strings.Join(studentColumns, ", ")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(studentColumns)), ", ")

	updates := make([]string, 0, len(studentColumns))
	for _, col := range studentColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	args := recordArgs(rec)
	args = append(args, now, now)

	query := fmt.Sprintf(`INSERT INTO students (%s, created_at, updated_at) VALUES (%s, ?, ?)
		ON CONFLICT(rno) DO UPDATE SET %s, updated_at = excluded.updated_at`,
		cols, placeholders, strings.Join(updates, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert student: %w", err)
	}
	return nil
}

// BatchUpsert stores many records in one transaction.
func (r *Repository) BatchUpsert(ctx context.Context, records []types.StudentRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch upsert: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		now := time.Now()
		cols := strings.Join(studentColumns, ", ")
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(studentColumns)), ", ")

		updates := make([]string, 0, len(studentColumns))
		for _, col := range studentColumns[1:] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}

		args := recordArgs(rec)
		args = append(args, now, now)

		query := fmt.Sprintf(`INSERT INTO students (%s, created_at, updated_at) VALUES (%s, ?, ?)
			ON CONFLICT(rno) DO UPDATE SET %s, updated_at = excluded.updated_at`,
			cols, placeholders, strings.Join(updates, ", "))

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert student in batch: %w", err)
		}
	}

	return tx.Commit()
}

// Delete removes a student row.
func (r *Repository) Delete(ctx context.Context, rno string) error {
	stmt, err := r.db.GetPreparedStatement("delete_student")
	if err != nil {
		return err
	}

	res, err := stmt.ExecContext(ctx, rno)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// Overview is the headline block for the dashboard landing page.
type Overview struct {
	TotalStudents int      `json:"total_students"`
	Departments   []string `json:"departments"`
	Years         []int    `json:"years"`
}

// Stats returns the student count and the distinct departments and years.
func (r *Repository) Stats(ctx context.Context) (*Overview, error) {
	overview := &Overview{Departments: []string{}, Years: []int{}}

	stmt, err := r.db.GetPreparedStatement("count_students")
	if err != nil {
		return nil, err
	}
	if err := stmt.QueryRowContext(ctx).Scan(&overview.TotalStudents); err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT dept FROM students WHERE dept IS NOT NULL AND TRIM(dept) != '' ORDER BY dept`)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		overview.Departments = append(overview.Departments, strings.TrimSpace(dept))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	yearRows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT year FROM students WHERE year IS NOT NULL AND year != 0 ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer yearRows.Close()
	for yearRows.Next() {
		var year int
		if err := yearRows.Scan(&year); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		overview.Years = append(overview.Years, year)
	}
	return overview, yearRows.Err()
}

// LogAlert records a sent mentor alert.
func (r *Repository) LogAlert(ctx context.Context, rno, recipient, perfLabel, riskLabel, dropoutLabel string) error {
	stmt, err := r.db.GetPreparedStatement("insert_alert_log")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, uuid.New().String(), rno, recipient,
		perfLabel, riskLabel, dropoutLabel, time.Now())
	if err != nil {
		return fmt.Errorf("failed to log alert: %w", err)
	}
	return nil
}

// recordArgs maps a canonical record onto the write-side column order.
// Unknown extra fields are dropped; missing numeric fields write as NULL so
// the zero-vs-absent distinction survives a round trip.
func recordArgs(rec types.StudentRecord) []any {
	args := make([]any, 0, len(studentColumns))
	for _, col := range studentColumns {
		key := strings.ToUpper(col)
		if !rec.Has(key) {
			switch key {
			case types.FieldPerformanceLabel, types.FieldRiskLabel, types.FieldDropoutLabel:
				args = append(args, "unknown")
			default:
				args = append(args, nil)
			}
			continue
		}

		switch key {
		case types.FieldRNO, types.FieldName, types.FieldDept,
			types.FieldPerformanceLabel, types.FieldRiskLabel, types.FieldDropoutLabel:
			args = append(args, rec.String(key))
		case types.FieldYear, types.FieldCurrSem, types.FieldPastCount:
			args = append(args, rec.Int(key))
		default:
			args = append(args, rec.Float(key))
		}
	}
	return args
}

// scanRecords converts result rows into canonical records. This is where
// storage casing is normalized: whatever the backend calls its columns, the
// pipeline sees UPPERCASE keys.
func scanRecords(rows *sql.Rows) ([]types.StudentRecord, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []types.StudentRecord
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}

		rec := make(types.StudentRecord, len(cols))
		for i, col := range cols {
			v := values[i]
			if v == nil {
				continue
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[strings.ToUpper(col)] = v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
