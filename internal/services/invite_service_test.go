package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/internal/security"
	"github.com/NordicFuzzCon/pretalx/pkg/mail"
)

func newInviteFixture(t *testing.T, db *gorm.DB, opts ...InviteOption) (*InviteService, *mail.Recorder) {
	t.Helper()

	outbox := mail.NewRecorder()
	svc, err := NewInviteService(db, outbox, security.NewPasswordPolicy(), opts...)
	require.NoError(t, err)
	return svc, outbox
}

func TestInviteCreateAndGet(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, outbox := newInviteFixture(t, db)

	invite, token, err := svc.Create(context.Background(), team.ID, "New@Example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "new@example.com", invite.Email)
	require.Len(t, outbox.Messages(), 1)
	require.Contains(t, outbox.Messages()[0].Body, token)

	got, err := svc.Get(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, invite.ID, got.ID)
	require.NotNil(t, got.Team)
	require.Equal(t, "Organisers", got.Team.Name)
}

func TestInviteGetUnknownToken(t *testing.T) {
	db := openServiceTestDB(t)
	svc, _ := newInviteFixture(t, db)

	_, err := svc.Get(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrInviteNotFound)
}

func TestInviteGetExpiredToken(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")

	current := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newInviteFixture(t, db,
		WithInviteClock(func() time.Time { return current }),
		WithInviteExpiry(24*time.Hour),
	)

	_, token, err := svc.Create(context.Background(), team.ID, "late@example.com")
	require.NoError(t, err)

	current = current.Add(48 * time.Hour)

	_, err = svc.Get(context.Background(), token)
	require.ErrorIs(t, err, ErrInviteExpired)
}

func TestInviteCreateGuards(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	member := createTestUser(t, db, "member@example.com", "f00baar!")
	require.NoError(t, db.Model(team).Association("Members").Append(member))

	svc, _ := newInviteFixture(t, db)

	_, _, err := svc.Create(context.Background(), team.ID, "member@example.com")
	require.ErrorIs(t, err, ErrInviteAlreadyMember)

	_, _, err = svc.Create(context.Background(), "missing-team", "new@example.com")
	require.ErrorIs(t, err, ErrTeamNotFound)

	_, _, err = svc.Create(context.Background(), team.ID, "new@example.com")
	require.NoError(t, err)
	_, _, err = svc.Create(context.Background(), team.ID, "new@example.com")
	require.ErrorIs(t, err, ErrInviteAlreadyPending)
}

func TestInviteAcceptOnce(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, _ := newInviteFixture(t, db)

	_, token, err := svc.Create(context.Background(), team.ID, "invited@example.com")
	require.NoError(t, err)

	before := countMembers(t, db, team.ID)

	user, err := svc.Accept(context.Background(), token, AcceptInviteInput{
		Email:          "invited@example.com",
		Password:       "f00baar!",
		PasswordRepeat: "f00baar!",
	})
	require.NoError(t, err)
	require.Equal(t, "invited@example.com", user.Email)

	require.Equal(t, before+1, countMembers(t, db, team.ID))
	require.Zero(t, countInvites(t, db, team.ID))

	// The consumed token never resolves again.
	_, err = svc.Get(context.Background(), token)
	require.ErrorIs(t, err, ErrInviteNotFound)

	// Accepting a second time fails and does not duplicate membership.
	_, err = svc.Accept(context.Background(), token, AcceptInviteInput{
		Email:          "other@example.com",
		Password:       "f00baar!",
		PasswordRepeat: "f00baar!",
	})
	require.ErrorIs(t, err, ErrInviteNotFound)
	require.Equal(t, before+1, countMembers(t, db, team.ID))
}

func TestInviteAcceptRejectsRegisteredEmail(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	createTestUser(t, db, "taken@example.com", "f00baar!")
	svc, _ := newInviteFixture(t, db)

	_, token, err := svc.Create(context.Background(), team.ID, "taken@example.com")
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), token, AcceptInviteInput{
		Email:          "taken@example.com",
		Password:       "f00baar!",
		PasswordRepeat: "f00baar!",
	})
	require.ErrorIs(t, err, ErrEmailRegistered)

	// Invite stays pending, membership unchanged.
	require.EqualValues(t, 1, countInvites(t, db, team.ID))
	require.Zero(t, countMembers(t, db, team.ID))
}

func TestInviteAcceptRejectsWeakPassword(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, _ := newInviteFixture(t, db)

	_, token, err := svc.Create(context.Background(), team.ID, "invited@example.com")
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), token, AcceptInviteInput{
		Email:          "invited@example.com",
		Password:       "password",
		PasswordRepeat: "password",
	})
	require.ErrorIs(t, err, security.ErrPasswordCommon)

	require.EqualValues(t, 1, countInvites(t, db, team.ID))
	require.Zero(t, countMembers(t, db, team.ID))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.Zero(t, users)
}

func TestInviteAcceptRejectsPasswordMismatch(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, _ := newInviteFixture(t, db)

	_, token, err := svc.Create(context.Background(), team.ID, "invited@example.com")
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), token, AcceptInviteInput{
		Email:          "invited@example.com",
		Password:       "f00baar!",
		PasswordRepeat: "f00baar?",
	})
	require.ErrorIs(t, err, ErrPasswordMismatch)
	require.EqualValues(t, 1, countInvites(t, db, team.ID))
}

func TestInviteRevoke(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, _ := newInviteFixture(t, db)

	invite, token, err := svc.Create(context.Background(), team.ID, "invited@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), team.ID, invite.ID))

	_, err = svc.Get(context.Background(), token)
	require.ErrorIs(t, err, ErrInviteNotFound)

	require.ErrorIs(t, svc.Revoke(context.Background(), team.ID, invite.ID), ErrInviteNotFound)
}

func TestInviteListByTeam(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, _ := newInviteFixture(t, db)

	_, _, err := svc.Create(context.Background(), team.ID, "a@example.com")
	require.NoError(t, err)
	_, _, err = svc.Create(context.Background(), team.ID, "b@example.com")
	require.NoError(t, err)

	invites, err := svc.ListByTeam(context.Background(), team.ID)
	require.NoError(t, err)
	require.Len(t, invites, 2)
}

func TestInviteAcceptConcurrentSingleWinner(t *testing.T) {
	db := openServiceTestDB(t)
	team := createTestTeam(t, db, "Organisers")
	svc, _ := newInviteFixture(t, db)

	_, token, err := svc.Create(context.Background(), team.ID, "new@example.com")
	require.NoError(t, err)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Accept(context.Background(), token, AcceptInviteInput{
				Email:          "new@example.com",
				Password:       "f00baar!",
				PasswordRepeat: "f00baar!",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, acceptErr := range errs {
		if acceptErr == nil {
			successes++
		}
	}
	require.LessOrEqual(t, successes, 1)

	// Whatever the interleaving, membership is granted exactly once and
	// the invite is gone.
	require.EqualValues(t, 1, countMembers(t, db, team.ID))
	require.EqualValues(t, 0, countInvites(t, db, team.ID))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.EqualValues(t, 1, users)

	_, err = svc.Get(context.Background(), token)
	require.ErrorIs(t, err, ErrInviteNotFound)
}
