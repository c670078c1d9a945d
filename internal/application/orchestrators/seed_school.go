package orchestrators

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"classledger/internal/domain/account"
	"classledger/internal/domain/classroom"
	"classledger/internal/domain/roster"
	"classledger/internal/domain/session"

	"github.com/google/uuid"
)

// RosterStoreForSeed defines the roster store interface needed by SeedSchool.
type RosterStoreForSeed interface {
	Save(ctx context.Context, s roster.Student) error
	ListByClass(ctx context.Context, classID string) ([]roster.Student, error)
	Count(ctx context.Context) (int, error)
}

// ClassroomStoreForSeed defines the classroom store interface needed by SeedSchool.
type ClassroomStoreForSeed interface {
	SaveClass(ctx context.Context, c classroom.Class) error
	SaveAssignment(ctx context.Context, a classroom.Assignment) error
}

// SeedSchoolDeps holds dependencies for SeedSchool.
type SeedSchoolDeps struct {
	AccountStore   AccountStoreForCreate
	RosterStore    RosterStoreForSeed
	ClassroomStore ClassroomStoreForSeed
	// SessionStore is optional; when set, a few committed sessions are
	// seeded so the coverage calendar has something to show.
	SessionStore SessionStore
}

// ExecuteSeedSchool creates a demo teacher, classes, rosters, and subject
// assignments if no students exist yet. Intended for fresh development
// databases; production deployments load real data instead.
func ExecuteSeedSchool(ctx context.Context, deps SeedSchoolDeps, teacherEmail, teacherPassword string) error {
	count, err := deps.RosterStore.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // Already seeded
	}

	teacherID, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    teacherEmail,
		Name:     "Demo Teacher",
		Password: teacherPassword,
		Role:     account.RoleTeacher,
	}, CreateAccountDeps{AccountStore: deps.AccountStore})
	if err != nil {
		return err
	}

	classes := []classroom.Class{
		{ID: uuid.New().String(), Name: "10A"},
		{ID: uuid.New().String(), Name: "10B"},
	}
	for _, c := range classes {
		if err := deps.ClassroomStore.SaveClass(ctx, c); err != nil {
			return err
		}
	}

	names := [][]string{
		{"Aisha Khan", "Ben Carter", "Chloe Patel", "Daniel Reid", "Ella Thompson"},
		{"Finn Walker", "Grace Liu", "Harry Price", "Isla Morgan", "Jack Nguyen"},
	}
	students := 0
	for i, c := range classes {
		for _, name := range names[i] {
			st := roster.Student{ID: uuid.New().String(), Name: name, ClassID: c.ID}
			if err := deps.RosterStore.Save(ctx, st); err != nil {
				return err
			}
			students++
		}
	}

	subjects := []string{"Maths", "Science", "English"}
	assignments := 0
	for _, c := range classes {
		for _, subject := range subjects {
			a := classroom.Assignment{
				ID:        uuid.New().String(),
				TeacherID: teacherID,
				ClassID:   c.ID,
				Subject:   subject,
			}
			if err := deps.ClassroomStore.SaveAssignment(ctx, a); err != nil {
				return err
			}
			assignments++
		}
	}

	if deps.SessionStore != nil {
		if err := seedDemoSessions(ctx, deps, teacherID, classes[0]); err != nil {
			return err
		}
	}

	slog.Info("seed_event", "event", "school_seeded", "classes", len(classes), "students", students, "assignments", assignments)
	return nil
}

// seedDemoSessions commits one attendance and one exam session for the class,
// dated a few days back so they never trip the future-date guard.
func seedDemoSessions(ctx context.Context, deps SeedSchoolDeps, teacherID string, class classroom.Class) error {
	students, err := deps.RosterStore.ListByClass(ctx, class.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	commits := []struct {
		kind    session.Kind
		daysAgo int
		meta    session.Metadata
	}{
		{kind: session.KindAttendance, daysAgo: 3},
		{kind: session.KindExam, daysAgo: 7, meta: session.Metadata{ExamTitle: "Practice Test", MaxScore: 100}},
	}
	for _, c := range commits {
		key := session.Key{ClassID: class.ID, Subject: "Maths", Date: now.AddDate(0, 0, -c.daysAgo).Truncate(24 * time.Hour)}
		sess, err := session.NewDraft(key, c.kind, teacherID, students)
		if err != nil {
			return err
		}
		if c.kind == session.KindExam {
			if err := sess.SetMetadata(c.meta); err != nil {
				return err
			}
			for i, st := range students {
				if err := sess.SetScore(st.ID, strconv.Itoa((i*17+40)%c.meta.MaxScore)); err != nil {
					return err
				}
			}
		}
		if err := sess.ValidateCommit(); err != nil {
			return err
		}
		if _, err := deps.SessionStore.Upsert(ctx, sess.ToRecord()); err != nil {
			return err
		}
	}
	return nil
}
