package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService 用户注册、登录与管理员账号管理。
// token只携带身份，角色与激活状态在每次换取Session时从数据库重读。
type UserService struct {
	users repository.UserRepository
	jwt   *auth.JWTService
}

// NewUserService 创建用户服务
func NewUserService(users repository.UserRepository, jwt *auth.JWTService) *UserService {
	return &UserService{users: users, jwt: jwt}
}

// Register 注册新用户，默认角色user
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, errors.NewValidationError("username and email are required")
	}
	if len(password) < 8 {
		return nil, errors.NewValidationError("password must be at least 8 characters")
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, errors.NewBusinessError(errors.ErrCodeConflict,
			fmt.Sprintf("username %s is already taken", username))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeInternalServer, "failed to hash password").WithCause(err)
	}

	user := &models.UserProfile{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to create user").WithCause(err)
	}

	logger.Info("user registered", zap.Uint("userID", user.UserID), zap.String("username", username))
	return user, nil
}

// Login 验证密码并签发token
func (s *UserService) Login(ctx context.Context, username, password string) (string, *models.UserProfile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, errors.NewBusinessError(errors.ErrCodeUnauthorized, "invalid username or password")
	}
	if !user.IsActive {
		return "", nil, errors.NewBusinessError(errors.ErrCodeUnauthorized, "account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, errors.NewBusinessError(errors.ErrCodeUnauthorized, "invalid username or password")
	}

	token, err := s.jwt.GenerateToken(user.UserID, user.Username)
	if err != nil {
		return "", nil, errors.NewSystemError(errors.ErrCodeInternalServer, "failed to generate token").WithCause(err)
	}

	logger.Info("user logged in", zap.Uint("userID", user.UserID))
	return token, user, nil
}

// BuildSession 用token声明换取Session。角色、激活状态与知识库分配一律取数据库当前值。
func (s *UserService) BuildSession(ctx context.Context, claims *auth.JWTClaims) (*auth.Session, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.NewBusinessError(errors.ErrCodeUnauthorized, "user no longer exists")
	}
	return auth.NewSession(user), nil
}

// ListUsers 列出用户，仅限admin
func (s *UserService) ListUsers(ctx context.Context, sess *auth.Session, page, limit int) ([]models.UserProfile, int64, error) {
	if !sess.IsAdmin() {
		return nil, 0, errors.NewAccessDeniedError()
	}
	return s.users.List(ctx, page, limit)
}

// SetRole 变更用户角色，仅限admin
func (s *UserService) SetRole(ctx context.Context, sess *auth.Session, userID uint, role string) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}
	if models.RoleRank(role) == 0 {
		return errors.NewValidationError(fmt.Sprintf("unknown role: %s", role))
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return errors.NewNotFoundError("user")
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"role": role}); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to update role").WithCause(err)
	}

	logger.Info("user role changed",
		zap.Uint("userID", userID),
		zap.String("role", role),
		zap.Uint("adminID", sess.UserID))
	return nil
}

// SetActive 启用或停用账号，仅限admin。停用即刻生效，已签发的token在下一次
// 换取Session时失去所有能力。
func (s *UserService) SetActive(ctx context.Context, sess *auth.Session, userID uint, active bool) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}
	if userID == sess.UserID && !active {
		return errors.NewValidationError("cannot deactivate your own account")
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return errors.NewNotFoundError("user")
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"is_active": active}); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to update account status").WithCause(err)
	}

	logger.Info("user active status changed",
		zap.Uint("userID", userID),
		zap.Bool("active", active),
		zap.Uint("adminID", sess.UserID))
	return nil
}

// AssignKBs 设置curator的知识库范围，仅限admin
func (s *UserService) AssignKBs(ctx context.Context, sess *auth.Session, userID uint, kbIDs []string) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errors.NewNotFoundError("user")
	}

	user.SetAssignedKBs(kbIDs)
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"assigned_kbs": user.AssignedKBs}); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to update kb assignments").WithCause(err)
	}

	logger.Info("curator kb assignments updated",
		zap.Uint("userID", userID),
		zap.Strings("kbs", kbIDs),
		zap.Uint("adminID", sess.UserID))
	return nil
}
