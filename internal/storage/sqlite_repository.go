package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Fixed-width so text comparison matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens (creating parent directories) and migrates the database.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) AppendJournalEntry(ctx context.Context, in JournalRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, entry_date, text, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		in.ID, in.EntryDate, in.Text, in.Source, mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetJournalEntry(ctx context.Context, id string) (JournalRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, entry_date, text, source, created_at
		FROM journal_entries WHERE id = ?`, id)
	item, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JournalRecord{}, ErrNotFound
		}
		return JournalRecord{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) ListJournalEntries(ctx context.Context, filter JournalListFilter) ([]JournalRecord, error) {
	query := `SELECT id, entry_date, text, source, created_at FROM journal_entries`
	args := make([]any, 0, 3)
	if filter.EntryDate != "" {
		query += ` WHERE entry_date = ?`
		args = append(args, filter.EntryDate)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]JournalRecord, 0)
	for rows.Next() {
		item, scanErr := scanJournal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) RecordNotification(ctx context.Context, in NotificationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, kind, title, message, task_ids, sent_at, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Kind, in.Title, in.Message, strings.Join(in.TaskIDs, ","), mustTime(in.SentAt), boolInt(in.Delivered),
	)
	return err
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, filter NotificationListFilter) ([]NotificationRecord, error) {
	query := `SELECT id, kind, title, message, task_ids, sent_at, delivered FROM notifications`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Since != nil {
		clauses = append(clauses, "sent_at >= ?")
		args = append(args, mustTime(*filter.Since))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY sent_at ASC, rowid ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]NotificationRecord, 0)
	for rows.Next() {
		item, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJournal(s scanner) (JournalRecord, error) {
	var out JournalRecord
	var created string
	if err := s.Scan(&out.ID, &out.EntryDate, &out.Text, &out.Source, &created); err != nil {
		return JournalRecord{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return JournalRecord{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func scanNotification(s scanner) (NotificationRecord, error) {
	var out NotificationRecord
	var taskIDs string
	var sent string
	var delivered int
	if err := s.Scan(&out.ID, &out.Kind, &out.Title, &out.Message, &taskIDs, &sent, &delivered); err != nil {
		return NotificationRecord{}, err
	}
	sentAt, err := parseRequiredTime(sent)
	if err != nil {
		return NotificationRecord{}, err
	}
	if taskIDs != "" {
		out.TaskIDs = strings.Split(taskIDs, ",")
	}
	out.SentAt = sentAt
	out.Delivered = delivered == 1
	return out, nil
}
