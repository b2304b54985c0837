// Package intent routes structured queries to deterministic handlers,
// bypassing retrieval and the generative model entirely. Questions like
// "what drives am I eligible for" have an exact answer computable from
// placement records and should never be subject to model hallucination.
//
// The router is pattern-matching plus a heuristic ranking over upcoming
// opportunities. Pattern sets and weights are policy, not mechanism: they
// may be tuned, but routing stays deterministic and never exposes one
// student's data to another (all lookups are keyed by the acting user).
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Roles understood by the router. Any other role always falls through to
// the retrieval path.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"
)

// maxListedOpportunities bounds the rendered eligibility list.
const maxListedOpportunities = 6

// Weights are the heuristic scoring constants for ranking opportunities.
// Arbitrary tuning values, kept named and overridable rather than inlined.
type Weights struct {
	SkillMatch    int // per required skill present in the student's skill list
	BranchMention int // eligibility text mentions the student's branch
	StreamMention int // eligibility text mentions the student's stream
	CGPAMet       int // parsed minimum CGPA requirement satisfied
	CGPAUnmet     int // parsed minimum CGPA requirement not satisfied
}

// DefaultWeights returns the standard scoring constants.
func DefaultWeights() Weights {
	return Weights{
		SkillMatch:    2,
		BranchMention: 1,
		StreamMention: 1,
		CGPAMet:       1,
		CGPAUnmet:     -1,
	}
}

// StudentProfile is the acting student's placement profile.
type StudentProfile struct {
	Name   string
	Branch string
	Stream string
	CGPA   float64
	Skills []string
}

// Announcement is an upcoming placement drive notice.
type Announcement struct {
	ID      string
	Title   string
	Company string
}

// Posting is the recruiter's job posting behind an announcement.
type Posting struct {
	Company     string
	Role        string
	Skills      []string
	Eligibility string
}

// Directory is the read-only view of placement records the router needs.
// Implemented by internal/records; defined here by the consumer.
type Directory interface {
	// StudentProfile returns the profile for a student, or nil if absent.
	StudentProfile(ctx context.Context, studentID string) (*StudentProfile, error)

	// UpcomingAnnouncements lists drives that have not happened yet.
	UpcomingAnnouncements(ctx context.Context) ([]Announcement, error)

	// PostingFor returns the recruiter posting behind an announcement, or
	// nil when none is linked.
	PostingFor(ctx context.Context, announcementID string) (*Posting, error)

	// PendingFor lists announcements awaiting action by a faculty member.
	PendingFor(ctx context.Context, facultyID string) ([]Announcement, error)

	// AssignedStudents lists names of students assigned to a faculty member.
	AssignedStudents(ctx context.Context, facultyID string) ([]string, error)
}

// Role-conditioned pattern sets. Lower-cased input is matched against each
// in order; first hit routes.
var (
	studentEligibilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(eligible|eligibility)\b`),
		regexp.MustCompile(`(what|which).*(job|drive|compan|opportunit).*(apply|for me)`),
		regexp.MustCompile(`\b(can|should) i apply\b`),
		regexp.MustCompile(`\bjobs? (for me|i can)\b`),
		regexp.MustCompile(`\b(upcoming|open) (drives?|opportunit)`),
	}

	facultyPendingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bassigned to me\b`),
		regexp.MustCompile(`\bpending\b`),
		regexp.MustCompile(`\bmy (students|tasks|announcements)\b`),
		regexp.MustCompile(`(what|anything).*(waiting|to review)`),
	}
)

// Router dispatches structured queries. Safe for concurrent use.
type Router struct {
	dir     Directory
	weights Weights
	logger  *slog.Logger
}

// New creates a Router. Zero-valued weights use DefaultWeights.
func New(dir Directory, weights Weights, logger *slog.Logger) (*Router, error) {
	if dir == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{dir: dir, weights: weights, logger: logger}, nil
}

// Route tests message against the acting role's pattern sets. When a
// pattern matches it computes and returns a deterministic answer and true;
// otherwise it returns false and the caller falls through to retrieval.
func (r *Router) Route(ctx context.Context, actorID, role, message string) (string, bool, error) {
	lowered := strings.ToLower(message)

	switch role {
	case RoleStudent:
		if matchesAny(lowered, studentEligibilityPatterns) {
			answer, err := r.eligibility(ctx, actorID)
			return answer, true, err
		}
	case RoleFaculty:
		if matchesAny(lowered, facultyPendingPatterns) {
			answer, err := r.pending(ctx, actorID)
			return answer, true, err
		}
	}
	return "", false, nil
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// scoredOpportunity pairs an announcement with its heuristic relevance.
type scoredOpportunity struct {
	announcement Announcement
	posting      *Posting
	score        int
}

// eligibility ranks upcoming opportunities against the student's profile.
func (r *Router) eligibility(ctx context.Context, studentID string) (string, error) {
	profile, err := r.dir.StudentProfile(ctx, studentID)
	if err != nil {
		return "", fmt.Errorf("loading student profile: %w", err)
	}

	announcements, err := r.dir.UpcomingAnnouncements(ctx)
	if err != nil {
		return "", fmt.Errorf("loading announcements: %w", err)
	}
	if len(announcements) == 0 {
		return "There are no upcoming placement drives right now. Check back soon!", nil
	}

	scored := make([]scoredOpportunity, 0, len(announcements))
	for _, a := range announcements {
		posting, err := r.dir.PostingFor(ctx, a.ID)
		if err != nil {
			return "", fmt.Errorf("loading posting for %s: %w", a.ID, err)
		}
		scored = append(scored, scoredOpportunity{
			announcement: a,
			posting:      posting,
			score:        r.scoreOpportunity(profile, posting),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxListedOpportunities {
		scored = scored[:maxListedOpportunities]
	}

	return renderEligibility(profile, scored), nil
}

// scoreOpportunity applies the heuristic weights. A nil profile or posting
// contributes nothing.
func (r *Router) scoreOpportunity(profile *StudentProfile, posting *Posting) int {
	if profile == nil || posting == nil {
		return 0
	}

	score := 0
	for _, required := range posting.Skills {
		for _, have := range profile.Skills {
			if strings.EqualFold(strings.TrimSpace(required), strings.TrimSpace(have)) {
				score += r.weights.SkillMatch
				break
			}
		}
	}

	eligibility := strings.ToLower(posting.Eligibility)
	if profile.Branch != "" && strings.Contains(eligibility, strings.ToLower(profile.Branch)) {
		score += r.weights.BranchMention
	}
	if profile.Stream != "" && strings.Contains(eligibility, strings.ToLower(profile.Stream)) {
		score += r.weights.StreamMention
	}

	if minCGPA, ok := parseMinCGPA(posting.Eligibility); ok {
		if profile.CGPA >= minCGPA {
			score += r.weights.CGPAMet
		} else {
			score += r.weights.CGPAUnmet
		}
	}
	return score
}

// cgpaPattern matches "CGPA 7.5", "7.5 CGPA", "cgpa: 7", "min cgpa of 8".
var cgpaPattern = regexp.MustCompile(`(?i)(?:cgpa\D{0,8}(\d+(?:\.\d+)?))|(?:(\d+(?:\.\d+)?)\s*\+?\s*cgpa)`)

// parseMinCGPA extracts a minimum-CGPA requirement from free-form
// eligibility text. Returns false when no requirement is stated.
func parseMinCGPA(eligibility string) (float64, bool) {
	m := cgpaPattern.FindStringSubmatch(eligibility)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 10 {
		return 0, false
	}
	return v, true
}

// renderEligibility formats the ranked list with a profile-aware header.
func renderEligibility(profile *StudentProfile, scored []scoredOpportunity) string {
	var b strings.Builder

	if profile != nil && profile.Name != "" {
		fmt.Fprintf(&b, "Hi %s! ", profile.Name)
	}
	b.WriteString("Based on your profile")
	if profile != nil && profile.Branch != "" {
		fmt.Fprintf(&b, " (%s", profile.Branch)
		if profile.CGPA > 0 {
			fmt.Fprintf(&b, ", CGPA %.1f", profile.CGPA)
		}
		b.WriteString(")")
	}
	b.WriteString(", here are the opportunities that fit you best:\n\n")

	for i, s := range scored {
		fmt.Fprintf(&b, "%d. %s", i+1, s.announcement.Title)
		if s.announcement.Company != "" {
			fmt.Fprintf(&b, " - %s", s.announcement.Company)
		}
		if s.posting != nil && s.posting.Role != "" {
			fmt.Fprintf(&b, " (%s)", s.posting.Role)
		}
		if s.posting != nil && len(s.posting.Skills) > 0 {
			fmt.Fprintf(&b, "\n   Skills: %s", strings.Join(s.posting.Skills, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nReview each drive's full eligibility criteria before applying.")
	return b.String()
}

// pending renders the faculty member's pending announcements and assigned
// students as bulleted sections.
func (r *Router) pending(ctx context.Context, facultyID string) (string, error) {
	announcements, err := r.dir.PendingFor(ctx, facultyID)
	if err != nil {
		return "", fmt.Errorf("loading pending announcements: %w", err)
	}
	students, err := r.dir.AssignedStudents(ctx, facultyID)
	if err != nil {
		return "", fmt.Errorf("loading assigned students: %w", err)
	}

	if len(announcements) == 0 && len(students) == 0 {
		return "Nothing is pending for you right now.", nil
	}

	var b strings.Builder
	if len(announcements) > 0 {
		b.WriteString("Pending announcements:\n")
		for _, a := range announcements {
			fmt.Fprintf(&b, "- %s", a.Title)
			if a.Company != "" {
				fmt.Fprintf(&b, " (%s)", a.Company)
			}
			b.WriteString("\n")
		}
	}
	if len(students) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Students assigned to you:\n")
		for _, s := range students {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
