package service

import (
	"errors"

	"tokenizermanager/internal/config"
	"tokenizermanager/internal/model"
	"tokenizermanager/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("用户名或密码错误")

type UserService struct {
	repo repository.UserRepositoryInterface
}

// NewUserServiceWithRepo 使用指定的仓库实现创建 UserService（用于依赖注入和测试）
func NewUserServiceWithRepo(repo repository.UserRepositoryInterface) *UserService {
	return &UserService{
		repo: repo,
	}
}

func NewUserService() *UserService {
	return NewUserServiceWithRepo(repository.NewUserRepository())
}

func (s *UserService) Login(req *model.LoginRequest) (*model.User, string, error) {
	user, err := s.repo.GetByUsername(req.Username)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := NewJWTService().GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) GetByID(id string) (*model.User, error) {
	return s.repo.GetByID(id)
}

func (s *UserService) EnsureAdmin() error {
	cfg := config.Get()

	exists, err := s.repo.ExistsByUsername(cfg.AdminUsername)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &model.User{
		Username:     cfg.AdminUsername,
		PasswordHash: string(hashedPassword),
		IsAdmin:      true,
	}
	if err := s.repo.Create(admin); err != nil {
		return err
	}

	logrus.WithField("username", cfg.AdminUsername).Info("管理员账户已创建")
	return nil
}
