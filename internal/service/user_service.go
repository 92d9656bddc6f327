package service

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 72 * time.Hour

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileInput struct {
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
	HomeCountry *string `json:"home_country" validate:"omitempty,max=100"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
}

type UserService interface {
	Register(ctx context.Context, input *RegisterInput) (*model.User, error)
	Login(ctx context.Context, input *LoginInput) (string, *model.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input *UpdateProfileInput) (*model.User, error)
	VerifyEmail(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	repo              repository.UserRepository
	reputationService ReputationService
	badgeService      BadgeService
	jwtSecret         []byte
	sanitizer         *bluemonday.Policy
}

func NewUserService(repo repository.UserRepository, reputationService ReputationService, badgeService BadgeService, jwtSecret string) UserService {
	return &userService{
		repo:              repo,
		reputationService: reputationService,
		badgeService:      badgeService,
		jwtSecret:         []byte(jwtSecret),
		sanitizer:         bluemonday.StrictPolicy(),
	}
}

func (s *userService) Register(ctx context.Context, input *RegisterInput) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, input *LoginInput) (string, *model.User, error) {
	user, err := s.repo.FindByUsername(ctx, input.Username)
	if err != nil {
		return "", nil, apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return "", nil, apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return signed, user, nil
}

func (s *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// UpdateProfile sanitizes free-text fields and re-checks the profile badge.
func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, input *UpdateProfileInput) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Bio != nil {
		bio := s.sanitizer.Sanitize(*input.Bio)
		user.Bio = &bio
	}
	if input.HomeCountry != nil {
		country := s.sanitizer.Sanitize(*input.HomeCountry)
		user.HomeCountry = &country
	}
	if input.AvatarURL != nil {
		user.AvatarURL = input.AvatarURL
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.badgeService.CheckAyubowan(ctx, userID)

	return user, nil
}

// VerifyEmail awards the one-time verification reputation bonus. Repeat calls
// are no-ops so the bonus cannot be farmed.
func (s *userService) VerifyEmail(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}

	if err := s.repo.SetEmailVerified(ctx, userID); err != nil {
		return err
	}

	if err := s.reputationService.Apply(ctx, nil, userID, RepEmailVerification, "Email verified", model.RefTypeEmailVerification, nil); err != nil {
		return err
	}

	s.badgeService.CheckAyubowan(ctx, userID)

	return nil
}
