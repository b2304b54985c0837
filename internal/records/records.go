// Package records reads placement directory data from PostgreSQL: student
// profiles, drive announcements, recruiter postings, and faculty
// assignments. It backs the intent router's deterministic answers.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campushq/placemate/internal/intent"
)

// querier is the subset of pgxpool.Pool behavior the directory needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Directory serves placement records. Implements intent.Directory.
type Directory struct {
	db     querier
	logger *slog.Logger
}

// compile-time interface check
var _ intent.Directory = (*Directory)(nil)

// New creates a Directory over db.
func New(db querier, logger *slog.Logger) (*Directory, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{db: db, logger: logger}, nil
}

// StudentProfile returns the student's placement profile, or nil when the
// student has no profile row.
func (d *Directory) StudentProfile(ctx context.Context, studentID string) (*intent.StudentProfile, error) {
	const q = `
		SELECT name, branch, stream, cgpa, skills
		FROM student_profiles
		WHERE user_id = $1`

	var p intent.StudentProfile
	err := d.db.QueryRow(ctx, q, studentID).Scan(&p.Name, &p.Branch, &p.Stream, &p.CGPA, &p.Skills)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying student profile: %w", err)
	}
	return &p, nil
}

// UpcomingAnnouncements lists published drives that have not started yet,
// soonest first.
func (d *Directory) UpcomingAnnouncements(ctx context.Context) ([]intent.Announcement, error) {
	const q = `
		SELECT id, title, company
		FROM announcements
		WHERE status = 'published' AND starts_at > now()
		ORDER BY starts_at ASC`

	rows, err := d.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	defer rows.Close()

	var out []intent.Announcement
	for rows.Next() {
		var a intent.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Company); err != nil {
			return nil, fmt.Errorf("scanning announcement: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating announcements: %w", err)
	}
	return out, nil
}

// PostingFor returns the recruiter posting linked to an announcement, or
// nil when the announcement carries no posting.
func (d *Directory) PostingFor(ctx context.Context, announcementID string) (*intent.Posting, error) {
	const q = `
		SELECT company, role, skills, eligibility
		FROM postings
		WHERE announcement_id = $1`

	var p intent.Posting
	err := d.db.QueryRow(ctx, q, announcementID).Scan(&p.Company, &p.Role, &p.Skills, &p.Eligibility)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying posting: %w", err)
	}
	return &p, nil
}

// PendingFor lists announcements still awaiting review by a faculty member.
func (d *Directory) PendingFor(ctx context.Context, facultyID string) ([]intent.Announcement, error) {
	const q = `
		SELECT a.id, a.title, a.company
		FROM announcements a
		JOIN announcement_reviews r ON r.announcement_id = a.id
		WHERE r.faculty_id = $1 AND r.status = 'pending'
		ORDER BY a.starts_at ASC`

	rows, err := d.db.Query(ctx, q, facultyID)
	if err != nil {
		return nil, fmt.Errorf("querying pending reviews: %w", err)
	}
	defer rows.Close()

	var out []intent.Announcement
	for rows.Next() {
		var a intent.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Company); err != nil {
			return nil, fmt.Errorf("scanning pending review: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending reviews: %w", err)
	}
	return out, nil
}

// AssignedStudents lists the names of students mentored by a faculty
// member, alphabetically.
func (d *Directory) AssignedStudents(ctx context.Context, facultyID string) ([]string, error) {
	const q = `
		SELECT s.name
		FROM student_profiles s
		JOIN faculty_assignments f ON f.student_id = s.user_id
		WHERE f.faculty_id = $1
		ORDER BY s.name ASC`

	rows, err := d.db.Query(ctx, q, facultyID)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return out, nil
}
