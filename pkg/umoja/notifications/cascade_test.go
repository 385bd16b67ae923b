package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rukundo/umoja/pkg/umoja/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	// Each in-memory sqlite connection is its own database; the cascade runs
	// concurrent goroutines, so pin the pool to a single shared connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to access underlying connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	models.AutoMigrate(db)
	return db
}

func uintPtr(v uint) *uint { return &v }

type fixture struct {
	db     *gorm.DB
	region models.Region
	uni    models.University
	alpha  models.SmallGroup
	beta   models.SmallGroup
	event  models.Event
}

// newFixture builds the Kigali / UoK hierarchy with two small groups and one
// event.
func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	f := &fixture{db: db}

	f.region = models.Region{Name: "Kigali"}
	db.Create(&f.region)
	f.uni = models.University{Name: "UoK", RegionID: f.region.ID}
	db.Create(&f.uni)
	f.alpha = models.SmallGroup{Name: "Alpha", RegionID: f.region.ID, UniversityID: f.uni.ID}
	db.Create(&f.alpha)
	f.beta = models.SmallGroup{Name: "Beta", RegionID: f.region.ID, UniversityID: f.uni.ID}
	db.Create(&f.beta)
	f.event = models.Event{
		Name:         "Sunday Service",
		Type:         models.EventPermanent,
		Date:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RegionID:     f.region.ID,
		UniversityID: f.uni.ID,
	}
	db.Create(&f.event)
	return f
}

func (f *fixture) addLeader(t *testing.T, email string, level models.ScopeLevel, role models.UserRole) models.User {
	t.Helper()
	user := models.User{Email: email, Name: email, PasswordHash: "x"}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	role.UserID = user.ID
	role.Level = level
	if err := f.db.Create(&role).Error; err != nil {
		t.Fatalf("Failed to create role: %v", err)
	}
	return user
}

func (f *fixture) addMember(t *testing.T, name string, group models.SmallGroup) models.Member {
	t.Helper()
	m := models.Member{
		FirstName:    name,
		Phone:        "078",
		RegionID:     group.RegionID,
		UniversityID: group.UniversityID,
		SmallGroupID: uintPtr(group.ID),
	}
	if err := f.db.Create(&m).Error; err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	return m
}

func (f *fixture) recordAbsence(t *testing.T, m models.Member) {
	t.Helper()
	rec := models.AttendanceRecord{EventID: f.event.ID, MemberID: m.ID, Status: models.StatusAbsent}
	if err := f.db.Create(&rec).Error; err != nil {
		t.Fatalf("Failed to create attendance record: %v", err)
	}
}

func (f *fixture) recordPresence(t *testing.T, m models.Member) {
	t.Helper()
	rec := models.AttendanceRecord{EventID: f.event.ID, MemberID: m.ID, Status: models.StatusPresent}
	if err := f.db.Create(&rec).Error; err != nil {
		t.Fatalf("Failed to create attendance record: %v", err)
	}
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uint, eventType models.NotificationEvent) []models.Notification {
	t.Helper()
	var out []models.Notification
	if err := db.Where("user_id = ? AND event_type = ?", userID, eventType).Find(&out).Error; err != nil {
		t.Fatalf("Failed to load notifications: %v", err)
	}
	return out
}

func TestFanOutNotifiesOwnGroupLeaderOnly(t *testing.T) {
	f := newFixture(t)
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leaderB := f.addLeader(t, "beta-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.beta.ID)})

	m1 := f.addMember(t, "m1", f.alpha)
	m2 := f.addMember(t, "m2", f.alpha)
	m3 := f.addMember(t, "m3", f.beta)
	f.recordAbsence(t, m1)
	f.recordAbsence(t, m2)
	f.recordPresence(t, m3)

	n := NewNotifier(f.db, zap.NewNop())
	if err := n.AttendanceRecorded(context.Background(), f.event.ID); err != nil {
		t.Fatalf("AttendanceRecorded failed: %v", err)
	}

	alerts := notificationsFor(t, f.db, leaderA.ID, models.NotifAttendanceMiss)
	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert for Alpha's leader, got %d", len(alerts))
	}
	var meta AttendanceMeta
	if err := json.Unmarshal([]byte(alerts[0].Metadata), &meta); err != nil {
		t.Fatalf("Failed to unmarshal alert metadata: %v", err)
	}
	if meta.TotalAbsent != 2 || len(meta.Absentees) != 2 {
		t.Errorf("Expected 2 absentees in metadata, got total=%d entries=%d", meta.TotalAbsent, len(meta.Absentees))
	}
	if meta.SmallGroupName != "Alpha" || meta.EventID != f.event.ID {
		t.Errorf("Unexpected alert metadata: %+v", meta)
	}
	if alerts[0].SmallGroupID != f.alpha.ID || alerts[0].UniversityID != f.uni.ID {
		t.Errorf("Alert hierarchy ids not denormalized: %+v", alerts[0])
	}

	// Beta had no absentees: its leader gets nothing.
	if got := notificationsFor(t, f.db, leaderB.ID, models.NotifAttendanceMiss); len(got) != 0 {
		t.Errorf("Expected no alerts for Beta's leader, got %d", len(got))
	}
}

func TestFanOutEveryLeaderOfGroup(t *testing.T) {
	f := newFixture(t)
	leader1 := f.addLeader(t, "l1", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leader2 := f.addLeader(t, "l2", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})

	f.recordAbsence(t, f.addMember(t, "m1", f.alpha))

	n := NewNotifier(f.db, zap.NewNop())
	if err := n.AttendanceRecorded(context.Background(), f.event.ID); err != nil {
		t.Fatalf("AttendanceRecorded failed: %v", err)
	}

	for _, leader := range []models.User{leader1, leader2} {
		if got := notificationsFor(t, f.db, leader.ID, models.NotifAttendanceMiss); len(got) != 1 {
			t.Errorf("Expected 1 alert for %s, got %d", leader.Email, len(got))
		}
	}
}

func TestFanOutSkipsLeaderlessGroup(t *testing.T) {
	f := newFixture(t)
	f.recordAbsence(t, f.addMember(t, "m1", f.alpha))

	n := NewNotifier(f.db, zap.NewNop())
	if err := n.AttendanceRecorded(context.Background(), f.event.ID); err != nil {
		t.Fatalf("Leaderless group must not fail the cascade: %v", err)
	}

	var count int64
	f.db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no notifications for leaderless group, got %d", count)
	}
}

func TestFanOutHonorsPreferenceOptOut(t *testing.T) {
	f := newFixture(t)
	enabled := f.addLeader(t, "enabled", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	disabled := f.addLeader(t, "disabled", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	f.db.Create(&models.NotificationPreference{UserID: disabled.ID, AttendanceAlerts: false})

	f.recordAbsence(t, f.addMember(t, "m1", f.alpha))

	n := NewNotifier(f.db, zap.NewNop())
	if err := n.AttendanceRecorded(context.Background(), f.event.ID); err != nil {
		t.Fatalf("AttendanceRecorded failed: %v", err)
	}

	if got := notificationsFor(t, f.db, enabled.ID, models.NotifAttendanceMiss); len(got) != 1 {
		t.Errorf("Expected 1 alert for opted-in leader, got %d", len(got))
	}
	if got := notificationsFor(t, f.db, disabled.ID, models.NotifAttendanceMiss); len(got) != 0 {
		t.Errorf("Expected no alerts for opted-out leader, got %d", len(got))
	}
}

func TestPreferenceOptOutPersists(t *testing.T) {
	f := newFixture(t)
	leader := f.addLeader(t, "leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	if err := f.db.Create(&models.NotificationPreference{UserID: leader.ID, AttendanceAlerts: false}).Error; err != nil {
		t.Fatalf("Failed to create preference: %v", err)
	}

	var pref models.NotificationPreference
	if err := f.db.Where("user_id = ?", leader.ID).First(&pref).Error; err != nil {
		t.Fatalf("Failed to reload preference: %v", err)
	}
	if pref.AttendanceAlerts {
		t.Error("Expected an explicit opt-out to survive the round trip, got attendance_alerts=true")
	}
}

// runCascade records absences in both groups, runs the fan-out, and returns
// each group leader's alert.
func runCascade(t *testing.T, f *fixture, n *Notifier, leaderA, leaderB models.User) (models.Notification, models.Notification) {
	t.Helper()
	f.recordAbsence(t, f.addMember(t, "a1", f.alpha))
	f.recordAbsence(t, f.addMember(t, "b1", f.beta))
	if err := n.AttendanceRecorded(context.Background(), f.event.ID); err != nil {
		t.Fatalf("AttendanceRecorded failed: %v", err)
	}
	alertsA := notificationsFor(t, f.db, leaderA.ID, models.NotifAttendanceMiss)
	alertsB := notificationsFor(t, f.db, leaderB.ID, models.NotifAttendanceMiss)
	if len(alertsA) != 1 || len(alertsB) != 1 {
		t.Fatalf("Expected one alert per leader, got %d and %d", len(alertsA), len(alertsB))
	}
	return alertsA[0], alertsB[0]
}

func TestRollupCreatedOnFirstAcknowledgment(t *testing.T) {
	f := newFixture(t)
	uniLeader := f.addLeader(t, "uni-leader", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leaderB := f.addLeader(t, "beta-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.beta.ID)})

	n := NewNotifier(f.db, zap.NewNop())
	alertA, _ := runCascade(t, f, n, leaderA, leaderB)

	if err := n.NotificationRead(context.Background(), alertA.ID, leaderA.ID); err != nil {
		t.Fatalf("NotificationRead failed: %v", err)
	}

	rollups := notificationsFor(t, f.db, uniLeader.ID, models.NotifUniversityAck)
	if len(rollups) != 1 {
		t.Fatalf("Expected 1 rollup for university leader, got %d", len(rollups))
	}
	var meta AckMeta
	if err := json.Unmarshal([]byte(rollups[0].Metadata), &meta); err != nil {
		t.Fatalf("Failed to unmarshal rollup metadata: %v", err)
	}
	if meta.TotalAcknowledgedGroups != 1 || len(meta.AcknowledgedSmallGroups) != 1 {
		t.Errorf("Expected one acknowledged group, got %+v", meta)
	}
	entry := meta.AcknowledgedSmallGroups[0]
	if entry.SmallGroupID != f.alpha.ID || entry.SmallGroupName != "Alpha" {
		t.Errorf("Unexpected acknowledgment entry: %+v", entry)
	}
	if entry.SmallGroupLeaderName != leaderA.Name {
		t.Errorf("Expected leader name %q in entry, got %q", leaderA.Name, entry.SmallGroupLeaderName)
	}
}

func TestRollupMergesSecondAcknowledgment(t *testing.T) {
	f := newFixture(t)
	uniLeader := f.addLeader(t, "uni-leader", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leaderB := f.addLeader(t, "beta-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.beta.ID)})

	n := NewNotifier(f.db, zap.NewNop())
	alertA, alertB := runCascade(t, f, n, leaderA, leaderB)

	if err := n.NotificationRead(context.Background(), alertA.ID, leaderA.ID); err != nil {
		t.Fatalf("First acknowledgment failed: %v", err)
	}
	if err := n.NotificationRead(context.Background(), alertB.ID, leaderB.ID); err != nil {
		t.Fatalf("Second acknowledgment failed: %v", err)
	}

	rollups := notificationsFor(t, f.db, uniLeader.ID, models.NotifUniversityAck)
	if len(rollups) != 1 {
		t.Fatalf("Second acknowledgment must merge, not create: got %d rollups", len(rollups))
	}
	var meta AckMeta
	json.Unmarshal([]byte(rollups[0].Metadata), &meta)
	if meta.TotalAcknowledgedGroups != 2 || len(meta.AcknowledgedSmallGroups) != 2 {
		t.Errorf("Expected 2 acknowledged groups after merge, got %+v", meta)
	}
}

func TestRollupIdempotentPerGroup(t *testing.T) {
	f := newFixture(t)
	uniLeader := f.addLeader(t, "uni-leader", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leaderB := f.addLeader(t, "beta-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.beta.ID)})

	n := NewNotifier(f.db, zap.NewNop())
	alertA, _ := runCascade(t, f, n, leaderA, leaderB)

	for i := 0; i < 3; i++ {
		if err := n.NotificationRead(context.Background(), alertA.ID, leaderA.ID); err != nil {
			t.Fatalf("Acknowledgment %d failed: %v", i, err)
		}
	}

	rollups := notificationsFor(t, f.db, uniLeader.ID, models.NotifUniversityAck)
	if len(rollups) != 1 {
		t.Fatalf("Expected 1 rollup, got %d", len(rollups))
	}
	var meta AckMeta
	json.Unmarshal([]byte(rollups[0].Metadata), &meta)
	if meta.TotalAcknowledgedGroups != 1 {
		t.Errorf("Repeated reads of the same alert must count once, got %d", meta.TotalAcknowledgedGroups)
	}
}

func TestRollupConcurrentAcknowledgments(t *testing.T) {
	f := newFixture(t)
	uniLeader := f.addLeader(t, "uni-leader", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leaderB := f.addLeader(t, "beta-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.beta.ID)})

	n := NewNotifier(f.db, zap.NewNop())
	alertA, alertB := runCascade(t, f, n, leaderA, leaderB)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.NotificationRead(context.Background(), alertA.ID, leaderA.ID)
	}()
	go func() {
		defer wg.Done()
		n.NotificationRead(context.Background(), alertB.ID, leaderB.ID)
	}()
	wg.Wait()

	rollups := notificationsFor(t, f.db, uniLeader.ID, models.NotifUniversityAck)
	if len(rollups) != 1 {
		t.Fatalf("Concurrent acknowledgments must yield exactly 1 rollup, got %d", len(rollups))
	}
	var meta AckMeta
	json.Unmarshal([]byte(rollups[0].Metadata), &meta)
	if meta.TotalAcknowledgedGroups != 2 || len(meta.AcknowledgedSmallGroups) != 2 {
		t.Errorf("Lost update under concurrency: %+v", meta)
	}
}

func TestRollupEveryUniversityLeader(t *testing.T) {
	f := newFixture(t)
	uniLeader1 := f.addLeader(t, "u1", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})
	uniLeader2 := f.addLeader(t, "u2", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	leaderB := f.addLeader(t, "beta-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.beta.ID)})

	n := NewNotifier(f.db, zap.NewNop())
	alertA, alertB := runCascade(t, f, n, leaderA, leaderB)

	n.NotificationRead(context.Background(), alertA.ID, leaderA.ID)
	n.NotificationRead(context.Background(), alertB.ID, leaderB.ID)

	for _, leader := range []models.User{uniLeader1, uniLeader2} {
		rollups := notificationsFor(t, f.db, leader.ID, models.NotifUniversityAck)
		if len(rollups) != 1 {
			t.Fatalf("Expected 1 rollup for %s, got %d", leader.Email, len(rollups))
		}
		var meta AckMeta
		json.Unmarshal([]byte(rollups[0].Metadata), &meta)
		if meta.TotalAcknowledgedGroups != 2 {
			t.Errorf("Rollup for %s out of sync: %+v", leader.Email, meta)
		}
	}
}

func TestReadOfNonAlertIsNoOp(t *testing.T) {
	f := newFixture(t)
	uniLeader := f.addLeader(t, "uni-leader", models.ScopeUniversity, models.UserRole{UniversityID: uintPtr(f.uni.ID)})

	rollup := models.Notification{
		UserID:       uniLeader.ID,
		EventType:    models.NotifUniversityAck,
		EventID:      f.event.ID,
		Subject:      "x",
		UniversityID: f.uni.ID,
	}
	f.db.Create(&rollup)

	n := NewNotifier(f.db, zap.NewNop())
	if err := n.NotificationRead(context.Background(), rollup.ID, uniLeader.ID); err != nil {
		t.Fatalf("Reading a rollup must be a no-op, got %v", err)
	}

	var count int64
	f.db.Model(&models.Notification{}).Where("event_type = ?", models.NotifUniversityAck).Count(&count)
	if count != 1 {
		t.Errorf("Reading a rollup must not spawn further rollups, got %d", count)
	}
}

func TestQueueRunsTasks(t *testing.T) {
	f := newFixture(t)
	leaderA := f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	f.recordAbsence(t, f.addMember(t, "m1", f.alpha))

	q := NewQueue(NewNotifier(f.db, zap.NewNop()), zap.NewNop())
	defer q.Close()

	q.AttendanceRecorded(f.event.ID)
	q.Wait()

	if got := notificationsFor(t, f.db, leaderA.ID, models.NotifAttendanceMiss); len(got) != 1 {
		t.Errorf("Expected queue to deliver 1 alert, got %d", len(got))
	}
}

func TestQueueDropsTasksAfterClose(t *testing.T) {
	f := newFixture(t)
	f.addLeader(t, "alpha-leader", models.ScopeSmallGroup, models.UserRole{SmallGroupID: uintPtr(f.alpha.ID)})
	f.recordAbsence(t, f.addMember(t, "m1", f.alpha))

	q := NewQueue(NewNotifier(f.db, zap.NewNop()), zap.NewNop())
	q.Close()

	// An enqueue racing with shutdown is dropped, not a panic.
	q.AttendanceRecorded(f.event.ID)
	q.Wait()

	var count int64
	f.db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no deliveries after Close, got %d", count)
	}

	// Closing twice is a no-op.
	q.Close()
}
