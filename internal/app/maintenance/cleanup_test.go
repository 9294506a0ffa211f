package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/database/testutil"
	"github.com/NordicFuzzCon/pretalx/internal/models"
)

func TestCleanupExpiredInvites(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)

	team := models.Team{Name: "Organisers"}
	require.NoError(t, db.Create(&team).Error)

	expired := models.TeamInvite{
		TeamID:    team.ID,
		Email:     "expired@example.org",
		TokenHash: "invite-expired",
		ExpiresAt: now.Add(-time.Hour),
	}
	active := models.TeamInvite{
		TeamID:    team.ID,
		Email:     "active@example.org",
		TokenHash: "invite-active",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)
	require.NoError(t, db.Create(&active).Error)

	removed, err := CleanupExpiredInvites(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var remaining int64
	require.NoError(t, db.Model(&models.TeamInvite{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{
		TTL:   time.Hour,
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	user := models.User{Email: "jane@example.org", Password: "irrelevant"}
	require.NoError(t, db.Create(&user).Error)

	expiredSession := models.Session{
		UserID:    user.ID,
		TokenHash: "session-expired",
		ExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, db.Create(&expiredSession).Error)

	team := models.Team{Name: "Organisers"}
	require.NoError(t, db.Create(&team).Error)
	require.NoError(t, db.Create(&models.TeamInvite{
		TeamID:    team.ID,
		Email:     "expired@example.org",
		TokenHash: "invite-expired",
		ExpiresAt: now.Add(-time.Hour),
	}).Error)

	cleaner := NewCleaner(db, sessions, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.Equal(t, int64(0), sessionCount)

	var inviteCount int64
	require.NoError(t, db.Model(&models.TeamInvite{}).Count(&inviteCount).Error)
	require.Equal(t, int64(0), inviteCount)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(db, sessions, WithCron(scheduler))

	require.NoError(t, cleaner.Start())

	stopCtx := cleaner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
