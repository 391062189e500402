package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"
	"estate-market-backend/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ImageLimits bounds listing image uploads.
type ImageLimits struct {
	MaxImages    int
	MaxFileBytes int64
	AllowedTypes []string
}

type propertyService struct {
	propRepo repository.PropertyRepository
	store    storage.Storage
	limits   ImageLimits
}

func NewPropertyService(propRepo repository.PropertyRepository, store storage.Storage, limits ImageLimits) PropertyService {
	return &propertyService{propRepo: propRepo, store: store, limits: limits}
}

func (s *propertyService) Create(ctx context.Context, actor domain.Principal, p *domain.Property) (*domain.Property, error) {
	logger.EnterMethod("PropertyService.Create", "owner_id", actor.UserID)

	if actor.Role != domain.UserRoleSeller && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only sellers can create listings")
	}
	if p.Status == "" {
		p.Status = domain.PropertyStatusAvailable
	}
	p.Title = strings.TrimSpace(p.Title)
	if err := validateProperty(p); err != nil {
		logger.ExitMethodWithError("PropertyService.Create", err)
		return nil, err
	}

	p.ID = ""
	p.OwnerID = actor.UserID
	p.Views = 0
	p.Likes = nil
	p.Images = nil
	if err := s.propRepo.Create(ctx, p); err != nil {
		return nil, storeError(err, "property")
	}
	logger.ExitMethod("PropertyService.Create", "property_id", p.ID)
	return p, nil
}

func (s *propertyService) List(ctx context.Context, f domain.PropertyFilter) (*domain.PropertyPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	v := apperrors.ValidationErrs()
	if f.Type != "" && !f.Type.Valid() {
		v.Add("type", "is not a known property type")
	}
	if f.Status != "" && !f.Status.Valid() {
		v.Add("status", "must be one of available, pending, sold, rented")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		v.Add("minPrice", "must not exceed maxPrice")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	props, total, err := s.propRepo.List(ctx, f)
	if err != nil {
		return nil, storeError(err, "properties")
	}
	if props == nil {
		props = []domain.Property{}
	}
	return &domain.PropertyPage{
		Properties:  props,
		Total:       total,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		CurrentPage: f.Page,
	}, nil
}

func (s *propertyService) Get(ctx context.Context, id string) (*domain.Property, error) {
	if err := s.propRepo.IncrementViews(ctx, id); err != nil {
		return nil, storeError(err, "property")
	}
	p, err := s.propRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "property")
	}
	return p, nil
}

func (s *propertyService) Update(ctx context.Context, actor domain.Principal, id string, patch PropertyPatch) (*domain.Property, error) {
	p, err := s.owned(ctx, actor, id, "update")
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Features != nil {
		p.Features = *patch.Features
	}
	if patch.Amenities != nil {
		p.Amenities = *patch.Amenities
	}
	if err := validateProperty(p); err != nil {
		return nil, err
	}

	if err := s.propRepo.Update(ctx, p); err != nil {
		return nil, storeError(err, "property")
	}
	return p, nil
}

func (s *propertyService) Delete(ctx context.Context, actor domain.Principal, id string) error {
	if _, err := s.owned(ctx, actor, id, "delete"); err != nil {
		return err
	}
	if err := s.propRepo.Delete(ctx, id); err != nil {
		return storeError(err, "property")
	}
	logger.Info("Property deleted", "property_id", id, "actor_id", actor.UserID)
	return nil
}

func (s *propertyService) ToggleLike(ctx context.Context, actor domain.Principal, id string) (*domain.LikeResult, error) {
	res, err := s.propRepo.ToggleLike(ctx, id, actor.UserID)
	if err != nil {
		return nil, storeError(err, "property")
	}
	return res, nil
}

// AddImages stores the files and appends their URLs to the listing. Stored
// files are removed again when the listing update fails.
func (s *propertyService) AddImages(ctx context.Context, actor domain.Principal, id string, files []ImageUpload) (*domain.Property, error) {
	logger.EnterMethod("PropertyService.AddImages", "property_id", id, "count", len(files))

	if len(files) == 0 {
		return nil, apperrors.Validation("at least one image is required")
	}
	p, err := s.owned(ctx, actor, id, "update")
	if err != nil {
		return nil, err
	}
	if len(p.Images)+len(files) > s.limits.MaxImages {
		return nil, apperrors.Validation(fmt.Sprintf("a listing may have at most %d images", s.limits.MaxImages))
	}

	v := apperrors.ValidationErrs()
	for i, f := range files {
		field := fmt.Sprintf("images[%d]", i)
		if f.Size > s.limits.MaxFileBytes {
			v.Add(field, fmt.Sprintf("exceeds the %d MB limit", s.limits.MaxFileBytes>>20))
		}
		if !s.allowed(f.ContentType) {
			v.Add(field, "must be a JPEG or PNG image")
		}
	}
	if err := v.Err(); err != nil {
		logger.ExitMethodWithError("PropertyService.AddImages", err)
		return nil, err
	}

	keys := make([]string, 0, len(files))
	urls := make([]string, 0, len(files))
	for _, f := range files {
		key, err := s.store.Save(ctx, f.ContentType, f.Content)
		if err != nil {
			s.discard(ctx, keys)
			return nil, apperrors.Infrastructure("failed to store image", err)
		}
		keys = append(keys, key)
		urls = append(urls, s.store.URL(key))
	}

	images, err := s.propRepo.AppendImages(ctx, id, urls, s.limits.MaxImages)
	if err != nil {
		s.discard(ctx, keys)
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Validation(fmt.Sprintf("a listing may have at most %d images", s.limits.MaxImages))
		}
		return nil, storeError(err, "property")
	}
	p.Images = images
	logger.ExitMethod("PropertyService.AddImages", "property_id", id, "images", len(images))
	return p, nil
}

func (s *propertyService) owned(ctx context.Context, actor domain.Principal, id, verb string) (*domain.Property, error) {
	p, err := s.propRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "property")
	}
	if p.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("not authorized to " + verb + " this property")
	}
	return p, nil
}

func (s *propertyService) allowed(contentType string) bool {
	for _, t := range s.limits.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

func (s *propertyService) discard(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			logger.Warn("Failed to remove orphaned upload", "key", k, "error", err)
		}
	}
}

func validateProperty(p *domain.Property) error {
	v := apperrors.ValidationErrs()
	if p.Title == "" {
		v.Add("title", "is required")
	}
	if !p.Type.Valid() {
		v.Add("type", "must be one of house, apartment, condo, land, commercial")
	}
	if !p.Status.Valid() {
		v.Add("status", "must be one of available, pending, sold, rented")
	}
	if !p.Price.IsPositive() {
		v.Add("price", "must be greater than zero")
	}
	if p.Features.Bedrooms < 0 || p.Features.Bathrooms < 0 || p.Features.Area < 0 {
		v.Add("features", "must not be negative")
	}
	return v.Err()
}
