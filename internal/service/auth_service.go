package service

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/repository"
)

const minPasswordLength = 8

type AuthService struct {
	userRepo repository.UserRepository
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

func (s *AuthService) Register(email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(email, string(hash))
	if err != nil {
		return nil, err
	}

	log.Printf("Created new user with email: %s", email)
	return user, nil
}

func (s *AuthService) Login(email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return nil, domain.ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidPassword
	}

	log.Printf("User %s authenticated successfully", email)
	return user, nil
}

func (s *AuthService) GetUserByID(userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
