package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTeamCreateAndGet(t *testing.T) {
	db := openServiceTestDB(t)

	svc, err := NewTeamService(db)
	require.NoError(t, err)

	team, err := svc.Create(context.Background(), CreateTeamInput{Name: " Organisers "})
	require.NoError(t, err)
	require.Equal(t, "Organisers", team.Name)

	got, err := svc.GetByID(context.Background(), team.ID)
	require.NoError(t, err)
	require.Equal(t, team.ID, got.ID)
	require.Empty(t, got.Members)
}

func TestTeamCreateRequiresName(t *testing.T) {
	db := openServiceTestDB(t)

	svc, err := NewTeamService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateTeamInput{Name: "  "})
	require.Error(t, err)
}

func TestTeamGetUnknownID(t *testing.T) {
	db := openServiceTestDB(t)

	svc, err := NewTeamService(db)
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestTeamListAndMemberCount(t *testing.T) {
	db := openServiceTestDB(t)

	svc, err := NewTeamService(db)
	require.NoError(t, err)

	team, err := svc.Create(context.Background(), CreateTeamInput{Name: "Reviewers"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateTeamInput{Name: "Organisers"})
	require.NoError(t, err)

	user := createTestUser(t, db, "member@example.com", "f00baar!")
	require.NoError(t, db.Model(team).Association("Members").Append(user))

	teams, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.Equal(t, "Organisers", teams[0].Name)

	count, err := svc.MemberCount(context.Background(), team.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
