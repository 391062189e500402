// Package seed loads fixture users and listings into the stores. It is the
// only way admin accounts are created.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type User struct {
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	Role        string `yaml:"role"`
	PhoneNumber string `yaml:"phone_number"`
}

type Property struct {
	OwnerEmail  string          `yaml:"owner_email"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Type        string          `yaml:"type"`
	Status      string          `yaml:"status"`
	Price       string          `yaml:"price"`
	Location    domain.Location `yaml:"location"`
	Bedrooms    int             `yaml:"bedrooms"`
	Bathrooms   int             `yaml:"bathrooms"`
	Area        float64         `yaml:"area"`
	Parking     bool            `yaml:"parking"`
	Furnished   bool            `yaml:"furnished"`
	Amenities   []string        `yaml:"amenities"`
}

type Data struct {
	Users      []User     `yaml:"users"`
	Properties []Property `yaml:"properties"`
}

// Result counts what a run inserted.
type Result struct {
	UsersCreated      int
	UsersExisting     int
	PropertiesCreated int
}

// ReadFile parses a fixture file.
func ReadFile(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &data, nil
}

type Seeder struct {
	users      repository.UserRepository
	properties repository.PropertyRepository
	cost       int
}

func NewSeeder(users repository.UserRepository, properties repository.PropertyRepository) *Seeder {
	return &Seeder{users: users, properties: properties, cost: bcrypt.DefaultCost}
}

// Apply inserts users that do not exist yet, then the listings of users
// created in this run. Running it twice inserts nothing the second time.
func (s *Seeder) Apply(ctx context.Context, data *Data) (*Result, error) {
	res := &Result{}
	ids := make(map[string]string, len(data.Users))
	created := make(map[string]bool, len(data.Users))

	for _, u := range data.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		existing, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			ids[email] = existing.ID
			res.UsersExisting++
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return res, fmt.Errorf("failed to look up %s: %w", email, err)
		}

		role := domain.UserRole(u.Role)
		if !role.Valid() {
			return res, fmt.Errorf("user %s: unknown role %q", email, u.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), s.cost)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", email, err)
		}

		user := &domain.User{Name: u.Name, Email: email, PasswordHash: string(hash), Role: role, PhoneNumber: u.PhoneNumber}
		if err := s.users.Create(ctx, user); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", email, err)
		}
		ids[email] = user.ID
		created[email] = true
		res.UsersCreated++
		logger.Info("Seeded user", "email", email, "role", role)
	}

	for _, p := range data.Properties {
		owner := strings.ToLower(strings.TrimSpace(p.OwnerEmail))
		ownerID, ok := ids[owner]
		if !ok {
			return res, fmt.Errorf("property %q: owner %s is not in the fixture users", p.Title, owner)
		}
		if !created[owner] {
			continue
		}

		prop, err := p.toDomain(ownerID)
		if err != nil {
			return res, err
		}
		if err := s.properties.Create(ctx, prop); err != nil {
			return res, fmt.Errorf("failed to create property %q: %w", p.Title, err)
		}
		res.PropertiesCreated++
	}
	return res, nil
}

func (p Property) toDomain(ownerID string) (*domain.Property, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("property %q: invalid price %q", p.Title, p.Price)
	}
	status := domain.PropertyStatus(p.Status)
	if status == "" {
		status = domain.PropertyStatusAvailable
	}
	prop := &domain.Property{
		Title:       p.Title,
		Description: p.Description,
		Type:        domain.PropertyType(p.Type),
		Status:      status,
		Price:       price,
		Location:    p.Location,
		Features: domain.Features{
			Bedrooms: p.Bedrooms, Bathrooms: p.Bathrooms, Area: p.Area, Parking: p.Parking, Furnished: p.Furnished,
		},
		Amenities: p.Amenities,
		OwnerID:   ownerID,
	}
	if !prop.Type.Valid() || !prop.Status.Valid() {
		return nil, fmt.Errorf("property %q: invalid type %q or status %q", p.Title, p.Type, p.Status)
	}
	return prop, nil
}
