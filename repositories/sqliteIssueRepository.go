package repositories

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"fixmycity-be/errs"
	"fixmycity-be/models"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteIssueRepository keeps issues in a single SQLite file.
type SQLiteIssueRepository struct {
	db  *sql.DB
	now Clock
}

// OpenSQLite creates or opens the database at path and applies the schema.
// A nil clock stamps rows with the current UTC second.
func OpenSQLite(path string, clock Clock) (*SQLiteIssueRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteIssueRepository{db: db, now: clock}, nil
}

func (r *SQLiteIssueRepository) Insert(ctx context.Context, issue models.NewIssue) (int64, error) {
	issue, err := prepareInsert(issue)
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO issues (category, description, image_path, latitude, longitude, status, created_at, user_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.Category,
		issue.Description,
		issue.ImagePath,
		issue.Latitude,
		issue.Longitude,
		string(models.Pending),
		r.now.now().Format(models.TimestampLayout),
		issue.UserEmail,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert issue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get issue ID: %w", err)
	}
	return id, nil
}

func (r *SQLiteIssueRepository) ListAll(ctx context.Context) ([]models.Issue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, description, image_path, latitude, longitude, status, created_at, user_email
		FROM issues
		ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := []models.Issue{}
	for rows.Next() {
		var (
			issue     models.Issue
			imagePath sql.NullString
			lat, lng  sql.NullFloat64
			email     sql.NullString
			status    string
		)
		if err := rows.Scan(
			&issue.ID,
			&issue.Category,
			&issue.Description,
			&imagePath,
			&lat,
			&lng,
			&status,
			&issue.CreatedAt,
			&email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}

		issue.Status = models.IssueStatus(status)
		issue.UserEmail = email.String
		if imagePath.Valid {
			issue.ImagePath = &imagePath.String
		}
		if lat.Valid {
			issue.Latitude = &lat.Float64
		}
		if lng.Valid {
			issue.Longitude = &lng.Float64
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}

	return issues, nil
}

func (r *SQLiteIssueRepository) GetImagePath(ctx context.Context, id int64) (string, error) {
	var path sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT image_path FROM issues WHERE id = ?", id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: issue %d", errs.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get image path: %w", err)
	}
	if !path.Valid || path.String == "" {
		return "", fmt.Errorf("%w: issue %d has no image", errs.ErrNotFound, id)
	}
	return path.String, nil
}

func (r *SQLiteIssueRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteIssueRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

