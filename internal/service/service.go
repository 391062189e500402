package service

import (
	"context"
	"errors"
	"io"
	"time"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*domain.User, error)
}

type PropertyService interface {
	Create(ctx context.Context, actor domain.Principal, p *domain.Property) (*domain.Property, error)
	List(ctx context.Context, filter domain.PropertyFilter) (*domain.PropertyPage, error)
	// Get counts a view before returning the listing.
	Get(ctx context.Context, id string) (*domain.Property, error)
	Update(ctx context.Context, actor domain.Principal, id string, patch PropertyPatch) (*domain.Property, error)
	Delete(ctx context.Context, actor domain.Principal, id string) error
	ToggleLike(ctx context.Context, actor domain.Principal, id string) (*domain.LikeResult, error)
	AddImages(ctx context.Context, actor domain.Principal, id string, files []ImageUpload) (*domain.Property, error)
}

type TransactionService interface {
	Open(ctx context.Context, actor domain.Principal, in OpenInput) (*OpenResult, error)
	Complete(ctx context.Context, actor domain.Principal, id, paymentMethod string) (*domain.Transaction, error)
	Cancel(ctx context.Context, actor domain.Principal, id string) (*CancelResult, error)
	List(ctx context.Context, actor domain.Principal) ([]domain.Transaction, error)
	ListAll(ctx context.Context) ([]domain.Transaction, error)
	Get(ctx context.Context, actor domain.Principal, id string) (*domain.Transaction, error)
	History(ctx context.Context, actor domain.Principal, id string) ([]domain.TransactionEvent, error)
	// ExpireStale cancels pending transactions older than olderThan and
	// returns how many it cancelled.
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Role        domain.UserRole
	PhoneNumber string
}

type ProfileInput struct {
	Name         string
	PhoneNumber  string
	ProfileImage string
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthResult struct {
	User *domain.User `json:"user"`
	TokenPair
}

// PropertyPatch holds the fields of an update; nil means unchanged.
type PropertyPatch struct {
	Title       *string
	Description *string
	Type        *domain.PropertyType
	Status      *domain.PropertyStatus
	Price       *decimal.Decimal
	Location    *domain.Location
	Features    *domain.Features
	Amenities   *[]string
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type OpenInput struct {
	PropertyID string
	Type       domain.TransactionType
	Amount     decimal.Decimal
	Contract   *domain.ContractDetails
}

type OpenResult struct {
	Transaction          *domain.Transaction `json:"transaction"`
	ClientHandshakeToken string              `json:"clientHandshakeToken"`
}

type CancelResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Warning     string              `json:"warning,omitempty"`
}

// storeError maps repository failures onto application error kinds.
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(what + " not found")
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict(what + " already exists")
	}
	return apperrors.Infrastructure("failed to access "+what, err)
}
