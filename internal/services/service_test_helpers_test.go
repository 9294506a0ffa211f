package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/database/testutil"
	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/pkg/crypto"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t)
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{Email: email, Password: hashed}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestTeam(t *testing.T, db *gorm.DB, name string) *models.Team {
	t.Helper()

	team := &models.Team{Name: name}
	require.NoError(t, db.Create(team).Error)
	return team
}

func countMembers(t *testing.T, db *gorm.DB, teamID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Table("team_members").Where("team_id = ?", teamID).Count(&count).Error)
	return count
}

func countInvites(t *testing.T, db *gorm.DB, teamID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.TeamInvite{}).Where("team_id = ?", teamID).Count(&count).Error)
	return count
}
