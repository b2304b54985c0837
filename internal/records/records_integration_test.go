package records_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/placemate/internal/records"
	"github.com/campushq/placemate/internal/testutil"
)

func seedDirectory(t *testing.T, tdb *testutil.TestDB) (upcomingID, pastID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	exec := func(sql string, args ...any) {
		t.Helper()
		if _, err := tdb.Pool.Exec(ctx, sql, args...); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	exec(`INSERT INTO student_profiles (user_id, name, branch, stream, cgpa, skills)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"s1", "Asha", "CSE", "B.Tech", 8.2, []string{"React", "Go"})
	exec(`INSERT INTO student_profiles (user_id, name, branch, stream, cgpa, skills)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"s2", "Ravi", "ECE", "B.Tech", 7.1, []string{"VHDL"})

	upcomingID = uuid.New()
	exec(`INSERT INTO announcements (id, title, company, status, starts_at)
		VALUES ($1, $2, $3, 'published', $4)`,
		upcomingID, "Drive: WebScale", "WebScale", time.Now().Add(48*time.Hour))

	pastID = uuid.New()
	exec(`INSERT INTO announcements (id, title, company, status, starts_at)
		VALUES ($1, $2, $3, 'published', $4)`,
		pastID, "Drive: OldCorp", "OldCorp", time.Now().Add(-48*time.Hour))

	exec(`INSERT INTO postings (id, announcement_id, company, role, skills, eligibility)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), upcomingID, "WebScale", "Frontend Engineer",
		[]string{"React", "TypeScript"}, "CSE students, CGPA 7.5 and above")

	exec(`INSERT INTO announcement_reviews (announcement_id, faculty_id, status)
		VALUES ($1, $2, 'pending')`, upcomingID, "f1")

	exec(`INSERT INTO faculty_assignments (faculty_id, student_id) VALUES ($1, $2)`, "f1", "s1")
	exec(`INSERT INTO faculty_assignments (faculty_id, student_id) VALUES ($1, $2)`, "f1", "s2")

	return upcomingID, pastID
}

func TestDirectory(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	upcomingID, _ := seedDirectory(t, tdb)

	ctx := context.Background()
	dir, err := records.New(tdb.Pool, testutil.NewLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Run("student profile", func(t *testing.T) {
		p, err := dir.StudentProfile(ctx, "s1")
		if err != nil {
			t.Fatalf("StudentProfile: %v", err)
		}
		if p == nil {
			t.Fatal("expected profile for s1")
		}
		if p.Name != "Asha" || p.Branch != "CSE" || p.CGPA != 8.2 {
			t.Errorf("profile = %+v", p)
		}
		if len(p.Skills) != 2 || p.Skills[0] != "React" {
			t.Errorf("skills = %v", p.Skills)
		}
	})

	t.Run("missing profile is nil", func(t *testing.T) {
		p, err := dir.StudentProfile(ctx, "nobody")
		if err != nil {
			t.Fatalf("StudentProfile: %v", err)
		}
		if p != nil {
			t.Errorf("expected nil profile, got %+v", p)
		}
	})

	t.Run("upcoming announcements exclude past drives", func(t *testing.T) {
		list, err := dir.UpcomingAnnouncements(ctx)
		if err != nil {
			t.Fatalf("UpcomingAnnouncements: %v", err)
		}
		if len(list) != 1 || list[0].Company != "WebScale" {
			t.Errorf("announcements = %+v", list)
		}
	})

	t.Run("posting for announcement", func(t *testing.T) {
		p, err := dir.PostingFor(ctx, upcomingID.String())
		if err != nil {
			t.Fatalf("PostingFor: %v", err)
		}
		if p == nil || p.Role != "Frontend Engineer" {
			t.Fatalf("posting = %+v", p)
		}
		if len(p.Skills) != 2 || p.Skills[0] != "React" {
			t.Errorf("skills = %v", p.Skills)
		}
	})

	t.Run("posting missing is nil", func(t *testing.T) {
		p, err := dir.PostingFor(ctx, uuid.New().String())
		if err != nil {
			t.Fatalf("PostingFor: %v", err)
		}
		if p != nil {
			t.Errorf("expected nil posting, got %+v", p)
		}
	})

	t.Run("pending reviews", func(t *testing.T) {
		list, err := dir.PendingFor(ctx, "f1")
		if err != nil {
			t.Fatalf("PendingFor: %v", err)
		}
		if len(list) != 1 || list[0].Title != "Drive: WebScale" {
			t.Errorf("pending = %+v", list)
		}

		none, err := dir.PendingFor(ctx, "f2")
		if err != nil {
			t.Fatalf("PendingFor: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no pending reviews for f2, got %+v", none)
		}
	})

	t.Run("assigned students alphabetical", func(t *testing.T) {
		names, err := dir.AssignedStudents(ctx, "f1")
		if err != nil {
			t.Fatalf("AssignedStudents: %v", err)
		}
		if len(names) != 2 || names[0] != "Asha" || names[1] != "Ravi" {
			t.Errorf("names = %v", names)
		}
	})
}
