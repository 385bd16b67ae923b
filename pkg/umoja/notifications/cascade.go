package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rukundo/umoja/pkg/umoja/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AbsenteeMeta is one absent member in an attendance-miss notification.
type AbsenteeMeta struct {
	MemberID uint   `json:"member_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// AttendanceMeta is the metadata payload of an attendance_miss notification.
type AttendanceMeta struct {
	EventID        uint           `json:"event_id"`
	EventType      string         `json:"event_type"`
	EventName      string         `json:"event_name"`
	EventDate      string         `json:"event_date"`
	SmallGroupName string         `json:"small_group_name"`
	Absentees      []AbsenteeMeta `json:"absentees"`
	TotalAbsent    int            `json:"total_absent"`
}

// AckEntry is one small group's acknowledgment inside a rollup notification.
type AckEntry struct {
	SmallGroupID         uint      `json:"small_group_id"`
	SmallGroupName       string    `json:"small_group_name"`
	SmallGroupLeaderName string    `json:"small_group_leader_name"`
	TotalAbsent          int       `json:"total_absent"`
	AcknowledgedAt       time.Time `json:"acknowledged_at"`
}

// AckMeta is the metadata payload of a university_acknowledgment rollup. The
// entries array grows by one per distinct acknowledging small group.
type AckMeta struct {
	EventID                 uint       `json:"event_id"`
	EventName               string     `json:"event_name"`
	TotalAcknowledgedGroups int        `json:"total_acknowledged_groups"`
	AcknowledgedSmallGroups []AckEntry `json:"acknowledged_small_groups"`
}

// Notifier runs the attendance notification cascade: fan-out of per-group
// alerts when attendance is recorded, and upward acknowledgment rollups when
// a group leader marks an alert read. Notifications are best-effort:
// per-recipient failures are logged and isolated, never propagated to the
// action that triggered the cascade.
type Notifier struct {
	db  *gorm.DB
	log *zap.Logger

	mu         sync.Mutex
	eventLocks map[uint]*sync.Mutex
}

// NewNotifier creates a Notifier.
func NewNotifier(db *gorm.DB, log *zap.Logger) *Notifier {
	return &Notifier{
		db:         db,
		log:        log,
		eventLocks: make(map[uint]*sync.Mutex),
	}
}

// lockEvent serializes rollup read-modify-write per event so two groups
// acknowledging concurrently cannot both observe "no rollup yet".
func (n *Notifier) lockEvent(eventID uint) func() {
	n.mu.Lock()
	l, ok := n.eventLocks[eventID]
	if !ok {
		l = &sync.Mutex{}
		n.eventLocks[eventID] = l
	}
	n.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// AttendanceRecorded fans out one attendance-miss notification per leader of
// every small group under the event's university that has at least one
// absentee. Groups fan out concurrently with no ordering between them.
// Graduate groups do not take attendance and are not part of the fan-out.
func (n *Notifier) AttendanceRecorded(ctx context.Context, eventID uint) error {
	var event models.Event
	if err := n.db.WithContext(ctx).First(&event, eventID).Error; err != nil {
		return fmt.Errorf("load event %d: %w", eventID, err)
	}

	var groups []models.SmallGroup
	if err := n.db.WithContext(ctx).Where("university_id = ?", event.UniversityID).Find(&groups).Error; err != nil {
		return fmt.Errorf("load small groups for university %d: %w", event.UniversityID, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			return n.fanOutGroup(ctx, event, group)
		})
	}
	return g.Wait()
}

// fanOutGroup notifies every leader of one small group about that group's own
// absentees. Lookup failures propagate; insert failures are isolated.
func (n *Notifier) fanOutGroup(ctx context.Context, event models.Event, group models.SmallGroup) error {
	var absentees []models.Member
	err := n.db.WithContext(ctx).
		Joins("JOIN attendance_records ON attendance_records.member_id = members.id").
		Where("attendance_records.event_id = ? AND attendance_records.status = ?", event.ID, models.StatusAbsent).
		Where("members.small_group_id = ?", group.ID).
		Find(&absentees).Error
	if err != nil {
		return fmt.Errorf("load absentees for group %d: %w", group.ID, err)
	}
	if len(absentees) == 0 {
		// No empty notifications.
		return nil
	}

	var leaderRoles []models.UserRole
	err = n.db.WithContext(ctx).
		Where("level = ? AND small_group_id = ?", models.ScopeSmallGroup, group.ID).
		Find(&leaderRoles).Error
	if err != nil {
		return fmt.Errorf("load leaders for group %d: %w", group.ID, err)
	}
	if len(leaderRoles) == 0 {
		// A group may legitimately have no registered leader yet.
		n.log.Warn("small group has no registered leader, skipping attendance alert",
			zap.Uint("small_group_id", group.ID),
			zap.Uint("event_id", event.ID))
		return nil
	}

	meta := AttendanceMeta{
		EventID:        event.ID,
		EventType:      string(event.Type),
		EventName:      event.Name,
		EventDate:      event.Date.Format("2006-01-02"),
		SmallGroupName: group.Name,
		TotalAbsent:    len(absentees),
	}
	for _, m := range absentees {
		meta.Absentees = append(meta.Absentees, AbsenteeMeta{
			MemberID: m.ID,
			Name:     m.DisplayName(),
			Phone:    m.Phone,
		})
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal attendance metadata: %w", err)
	}

	leaders, _ := errgroup.WithContext(ctx)
	for _, role := range leaderRoles {
		role := role
		leaders.Go(func() error {
			if !n.attendanceAlertsEnabled(ctx, role.UserID) {
				return nil
			}
			notif := models.Notification{
				UserID:       role.UserID,
				EventType:    models.NotifAttendanceMiss,
				EventID:      event.ID,
				Subject:      fmt.Sprintf("Absentees in %s", group.Name),
				Message:      fmt.Sprintf("%d member(s) of %s missed %s.", len(absentees), group.Name, event.Name),
				Metadata:     string(raw),
				RegionID:     group.RegionID,
				UniversityID: group.UniversityID,
				SmallGroupID: group.ID,
			}
			if err := n.createWithRetry(ctx, &notif); err != nil {
				// One failed insert must not abort sibling inserts.
				n.log.Error("failed to create attendance alert",
					zap.Uint("recipient_id", role.UserID),
					zap.Uint("small_group_id", group.ID),
					zap.Uint("event_id", event.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	return leaders.Wait()
}

// attendanceAlertsEnabled checks the per-user preference flag. No row means
// alerts are on.
func (n *Notifier) attendanceAlertsEnabled(ctx context.Context, userID uint) bool {
	var pref models.NotificationPreference
	err := n.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		return true
	}
	return pref.AttendanceAlerts
}

// createWithRetry inserts a notification, retrying transient failures with
// backoff before giving up on that one recipient.
func (n *Notifier) createWithRetry(ctx context.Context, notif *models.Notification) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
		if err = n.db.WithContext(ctx).Create(notif).Error; err == nil {
			return nil
		}
	}
	return err
}

// NotificationRead propagates a leader's acknowledgment of an attendance
// alert up to the leaders of the owning university, merging into the existing
// rollup for the event if one exists. The original notification is never
// touched here; setting its ReadAt is the generic mark-read operation's job.
func (n *Notifier) NotificationRead(ctx context.Context, notificationID, readerID uint) error {
	var notif models.Notification
	if err := n.db.WithContext(ctx).First(&notif, notificationID).Error; err != nil {
		return fmt.Errorf("load notification %d: %w", notificationID, err)
	}
	if notif.EventType != models.NotifAttendanceMiss || notif.SmallGroupID == 0 {
		return nil
	}

	var group models.SmallGroup
	if err := n.db.WithContext(ctx).First(&group, notif.SmallGroupID).Error; err != nil {
		return fmt.Errorf("load small group %d: %w", notif.SmallGroupID, err)
	}

	var uniRoles []models.UserRole
	err := n.db.WithContext(ctx).
		Where("level = ? AND university_id = ?", models.ScopeUniversity, group.UniversityID).
		Find(&uniRoles).Error
	if err != nil {
		return fmt.Errorf("load university leaders for %d: %w", group.UniversityID, err)
	}
	if len(uniRoles) == 0 {
		return nil
	}

	var reader models.User
	leaderName := ""
	if err := n.db.WithContext(ctx).First(&reader, readerID).Error; err == nil {
		leaderName = reader.Name
	}

	var alertMeta AttendanceMeta
	_ = json.Unmarshal([]byte(notif.Metadata), &alertMeta)

	entry := AckEntry{
		SmallGroupID:         group.ID,
		SmallGroupName:       group.Name,
		SmallGroupLeaderName: leaderName,
		TotalAbsent:          alertMeta.TotalAbsent,
		AcknowledgedAt:       time.Now().UTC(),
	}

	// The update-or-create below is a read-then-write on shared rows; the
	// per-event lock makes it atomic with respect to sibling acknowledgments.
	unlock := n.lockEvent(notif.EventID)
	defer unlock()

	return n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rollups []models.Notification
		err := tx.Where("event_type = ? AND event_id = ? AND university_id = ?",
			models.NotifUniversityAck, notif.EventID, group.UniversityID).
			Find(&rollups).Error
		if err != nil {
			return err
		}

		if len(rollups) > 0 {
			var meta AckMeta
			if err := json.Unmarshal([]byte(rollups[0].Metadata), &meta); err != nil {
				return fmt.Errorf("unmarshal rollup metadata: %w", err)
			}
			for _, e := range meta.AcknowledgedSmallGroups {
				if e.SmallGroupID == group.ID {
					// This group already acknowledged; exactly once per group.
					return nil
				}
			}
			meta.AcknowledgedSmallGroups = append(meta.AcknowledgedSmallGroups, entry)
			meta.TotalAcknowledgedGroups++
			raw, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			message := rollupMessage(meta)
			for i := range rollups {
				if err := tx.Model(&rollups[i]).Updates(map[string]interface{}{
					"metadata": string(raw),
					"message":  message,
				}).Error; err != nil {
					return err
				}
			}
			return nil
		}

		meta := AckMeta{
			EventID:                 notif.EventID,
			EventName:               alertMeta.EventName,
			TotalAcknowledgedGroups: 1,
			AcknowledgedSmallGroups: []AckEntry{entry},
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		message := rollupMessage(meta)
		for _, role := range uniRoles {
			rollup := models.Notification{
				UserID:       role.UserID,
				EventType:    models.NotifUniversityAck,
				EventID:      notif.EventID,
				Subject:      fmt.Sprintf("Attendance acknowledgments for %s", alertMeta.EventName),
				Message:      message,
				Metadata:     string(raw),
				RegionID:     group.RegionID,
				UniversityID: group.UniversityID,
			}
			if err := tx.Create(&rollup).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func rollupMessage(meta AckMeta) string {
	return fmt.Sprintf("%d small group(s) have acknowledged the attendance alert for %s.",
		meta.TotalAcknowledgedGroups, meta.EventName)
}
