package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	log      *zap.Logger
	events   recorder
	sessions session.Store
	cost     int
}

// NewUserService hashes passwords with the given bcrypt cost; zero means
// bcrypt.DefaultCost.
func NewUserService(db *gorm.DB, log *zap.Logger, rec activity.Recorder, sessions session.Store, cost int) *UserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{
		db:       db,
		log:      log.With(zap.String("service", "users")),
		events:   recorder{rec: rec, collection: "Users"},
		sessions: sessions,
		cost:     cost,
	}
}

type RegisterInput struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Name         string `json:"nameOfTheUser"`
	CPF          string `json:"cpf"`
	CreaNumber   string `json:"creaNumber"`
	Position     string `json:"position"`
	Profile      string `json:"userProfile"`
	Role         string `json:"userRole"`
	Rank         string `json:"userPG"`
	Department   string `json:"userDepartament"`
	FacilityID   string `json:"facility"`
	ImageProfile string `json:"imageProfile"`
}

type PasswordChange struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *UserService) registerError(ctx context.Context, actor Actor, username string, err error) error {
	s.events.record(ctx, actor, models.ActionRegisterError, nil, fmt.Sprintf("Falha ao registrar usuário '%s'", username), map[string]any{
		"error": err.Error(),
	})
	return err
}

func (s *UserService) Register(ctx context.Context, actor Actor, in RegisterInput) (*models.User, error) {
	user := &models.User{
		Username:   strings.TrimSpace(in.Username),
		Name:       strings.TrimSpace(in.Name),
		CPF:        strings.TrimSpace(in.CPF),
		CreaNumber: strings.TrimSpace(in.CreaNumber),
		Position:   strings.TrimSpace(in.Position),
		Profile:    in.Profile,
		Role:       in.Role,
		Rank:       in.Rank,
		Department: in.Department,
	}
	if user.Username == "" || in.Password == "" || user.Name == "" || user.CPF == "" || user.CreaNumber == "" || user.Position == "" {
		return nil, s.registerError(ctx, actor, user.Username, apperr.Validation("Campos obrigatórios faltando: username, password, nameOfTheUser, cpf, creaNumber, position."))
	}
	user.ApplyDefaults()
	if field := user.InvalidEnum(); field != "" {
		return nil, s.registerError(ctx, actor, user.Username, apperr.Validation("Valor inválido para %s.", field))
	}
	var err error
	if user.FacilityID, err = parseOptionalID(in.FacilityID, "da Facility"); err != nil {
		return nil, s.registerError(ctx, actor, user.Username, err)
	}
	if user.ImageProfileID, err = parseOptionalID(in.ImageProfile, "da imagem de perfil"); err != nil {
		return nil, s.registerError(ctx, actor, user.Username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, s.registerError(ctx, actor, user.Username, apperr.Validation("Erro ao registrar usuário."))
	}
	user.PasswordHash = string(hash)

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return nil, s.registerError(ctx, actor, user.Username, apperr.Conflict(err, "Usuário ou CPF já cadastrado."))
		}
		return nil, s.registerError(ctx, actor, user.Username, apperr.Backend(err, "Erro ao registrar usuário."))
	}
	s.log.Info("user registered", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	s.events.record(ctx, actor, models.ActionRegister, ref(user.ID), fmt.Sprintf("Usuário '%s' registrado", user.Username), nil)
	return user, nil
}

func (s *UserService) byUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", strings.TrimSpace(username)).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Usuário não encontrado.")
		}
		return nil, apperr.Backend(err, "Erro interno.")
	}
	return &user, nil
}

// Login checks the credentials and opens a session. The returned token goes
// into the session cookie.
func (s *UserService) Login(ctx context.Context, actor Actor, username, password string) (*models.User, string, error) {
	invalid := apperr.Auth("Usuário ou senha inválidos.")
	user, err := s.byUsername(ctx, username)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	}
	if err != nil {
		if errors.Is(err, apperr.ErrBackend) {
			return nil, "", err
		}
		s.events.record(ctx, actor, models.ActionLoginFail, nil, fmt.Sprintf("Falha de login para '%s'", username), nil)
		return nil, "", invalid
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, "", apperr.Backend(err, "Erro ao autenticar o usuário.")
	}
	actor.UserID = ref(user.ID)
	s.events.record(ctx, actor, models.ActionLogin, ref(user.ID), fmt.Sprintf("Usuário '%s' logado", user.Username), nil)
	return user, token, nil
}

// Logout ends the session of an authenticated actor.
func (s *UserService) Logout(ctx context.Context, actor Actor, token string) error {
	if !actor.Authenticated() || token == "" {
		return apperr.Forbidden("Usuário não autenticado.")
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return apperr.Backend(err, "Erro ao deslogar.")
	}
	s.events.record(ctx, actor, models.ActionLogout, actor.UserID, "Usuário deslogado", nil)
	return nil
}

// Resolve maps a session token to its user. Unknown, expired or orphaned
// tokens yield an Auth error.
func (s *UserService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Auth("Usuário não autenticado.")
	}
	userID, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.Auth("Usuário não autenticado.")
		}
		return nil, apperr.Backend(err, "Erro interno.")
	}
	user, err := s.Get(ctx, userID.String())
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Auth("Usuário não autenticado.")
	}
	return user, err
}

func (s *UserService) ChangePassword(ctx context.Context, actor Actor, in PasswordChange) error {
	if strings.TrimSpace(in.Username) == "" || in.CurrentPassword == "" || in.NewPassword == "" {
		return apperr.Validation("Preencha todos os campos: username, senha atual e nova senha.")
	}
	user, err := s.byUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return apperr.Auth("Senha atual incorreta.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
	if err != nil {
		return apperr.Validation("Erro ao atualizar senha.")
	}
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("password_hash", string(hash)).Error; err != nil {
		return apperr.Backend(err, "Erro ao atualizar senha.")
	}
	s.events.record(ctx, actor, models.ActionPasswordChange, ref(user.ID), fmt.Sprintf("Senha do usuário '%s' alterada", user.Username), nil)
	return nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar usuários.")
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, rawID string) (*models.User, error) {
	id, err := ParseID(rawID, "do usuário")
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Usuário não encontrado.")
		}
		return nil, apperr.Backend(err, "Erro ao buscar usuário.")
	}
	return &user, nil
}
