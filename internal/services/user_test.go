package services

import (
	"context"
	"testing"

	"github.com/chxlky/contract-kanban/internal/activity/activitytest"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/session"
	"github.com/chxlky/contract-kanban/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T) (*UserService, *activitytest.Capture) {
	t.Helper()
	db := testutil.DB(t)
	events := &activitytest.Capture{}
	return NewUserService(db, testutil.Logger(t), events, session.NewDBStore(db, 0), bcrypt.MinCost), events
}

func registration(username, cpf string) RegisterInput {
	return RegisterInput{
		Username:   username,
		Password:   "s3nha-forte",
		Name:       "Maria Souza",
		CPF:        cpf,
		CreaNumber: "DF-12345",
		Position:   "Fiscal de contrato",
	}
}

func TestUserRegisterAppliesDefaults(t *testing.T) {
	svc, events := newUserService(t)

	user, err := svc.Register(context.Background(), Actor{IP: "10.0.0.3"}, registration("maria@om.mil.br", "111.111.111-11"))
	require.NoError(t, err)

	assert.Equal(t, "Visitante", user.Profile)
	assert.Equal(t, "Militar", user.Role)
	assert.Equal(t, "Militar", user.Rank)
	assert.Equal(t, "CRO3", user.Department)
	assert.NotEqual(t, "s3nha-forte", user.PasswordHash)
	assert.Equal(t, []models.Action{models.ActionRegister}, events.Actions())
}

func TestUserRegisterErrors(t *testing.T) {
	svc, events := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Actor{}, registration("joao@om.mil.br", "222"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, Actor{}, registration("joao@om.mil.br", "333"))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	in := registration("ana@om.mil.br", "444")
	in.Rank = "Almirante"
	_, err = svc.Register(ctx, Actor{}, in)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	in = registration("", "555")
	_, err = svc.Register(ctx, Actor{}, in)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, []models.Action{
		models.ActionRegister,
		models.ActionRegisterError,
		models.ActionRegisterError,
		models.ActionRegisterError,
	}, events.Actions())
}

func TestUserLoginSession(t *testing.T) {
	svc, events := newUserService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, Actor{}, registration("carlos@om.mil.br", "666"))
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, Actor{}, "carlos@om.mil.br", "errada")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, _, err = svc.Login(ctx, Actor{}, "ninguem@om.mil.br", "s3nha-forte")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	user, token, err := svc.Login(ctx, Actor{}, "carlos@om.mil.br", "s3nha-forte")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, token)

	resolved, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	assert.ErrorIs(t, svc.Logout(ctx, Actor{}, token), apperr.ErrForbidden)
	require.NoError(t, svc.Logout(ctx, Actor{UserID: ref(user.ID)}, token))

	_, err = svc.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrAuth)

	assert.Equal(t, []models.Action{
		models.ActionRegister,
		models.ActionLoginFail,
		models.ActionLoginFail,
		models.ActionLogin,
		models.ActionLogout,
	}, events.Actions())
}

func TestUserChangePassword(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Actor{}, registration("lia@om.mil.br", "777"))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   PasswordChange
		want error
	}{
		{"missing fields", PasswordChange{Username: "lia@om.mil.br"}, apperr.ErrValidation},
		{"unknown user", PasswordChange{"x@om.mil.br", "a", "b"}, apperr.ErrNotFound},
		{"wrong password", PasswordChange{"lia@om.mil.br", "errada", "nova"}, apperr.ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.ChangePassword(ctx, Actor{}, tt.in), tt.want)
		})
	}

	require.NoError(t, svc.ChangePassword(ctx, Actor{}, PasswordChange{"lia@om.mil.br", "s3nha-forte", "nova-s3nha"}))
	_, _, err = svc.Login(ctx, Actor{}, "lia@om.mil.br", "nova-s3nha")
	assert.NoError(t, err)
}
