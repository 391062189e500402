package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"

	"github.com/lib/pq"
)

type propertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) repository.PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `id, title, description, type, status, price, address, city, state, zip_code, lat, lng,
	bedrooms, bathrooms, area, parking, furnished, amenities, images, owner_id, views, likes, created_at, updated_at`

func scanProperty(row rowScanner) (*domain.Property, error) {
	p := &domain.Property{}
	var lat, lng sql.NullFloat64
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Type, &p.Status, &p.Price,
		&p.Location.Address, &p.Location.City, &p.Location.State, &p.Location.ZipCode, &lat, &lng,
		&p.Features.Bedrooms, &p.Features.Bathrooms, &p.Features.Area, &p.Features.Parking, &p.Features.Furnished,
		pq.Array(&p.Amenities), pq.Array(&p.Images), &p.OwnerID, &p.Views, pq.Array(&p.Likes), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if lat.Valid {
		p.Location.Lat = &lat.Float64
	}
	if lng.Valid {
		p.Location.Lng = &lng.Float64
	}
	return p, nil
}

func (r *propertyRepository) Create(ctx context.Context, p *domain.Property) error {
	query := `INSERT INTO properties (title, description, type, status, price, address, city, state, zip_code, lat, lng,
	              bedrooms, bathrooms, area, parking, furnished, amenities, images, owner_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	          RETURNING id`
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}

	logger.DatabaseCall("CreateProperty", query, "owner_id", p.OwnerID)
	err := r.db.QueryRowContext(ctx, query, p.Title, p.Description, p.Type, p.Status, p.Price,
		p.Location.Address, p.Location.City, p.Location.State, p.Location.ZipCode, p.Location.Lat, p.Location.Lng,
		p.Features.Bedrooms, p.Features.Bathrooms, p.Features.Area, p.Features.Parking, p.Features.Furnished,
		pq.Array(p.Amenities), pq.Array(p.Images), p.OwnerID, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	logger.DatabaseResult("CreateProperty", 1, err)
	return translate(err)
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1 AND deleted_at IS NULL`
	return scanProperty(r.db.QueryRowContext(ctx, query, id))
}

func (r *propertyRepository) Update(ctx context.Context, p *domain.Property) error {
	query := `UPDATE properties SET title=$1, description=$2, type=$3, status=$4, price=$5, address=$6, city=$7, state=$8,
	              zip_code=$9, lat=$10, lng=$11, bedrooms=$12, bathrooms=$13, area=$14, parking=$15, furnished=$16,
	              amenities=$17, updated_at=$18
	          WHERE id=$19 AND deleted_at IS NULL`
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, p.Title, p.Description, p.Type, p.Status, p.Price,
		p.Location.Address, p.Location.City, p.Location.State, p.Location.ZipCode, p.Location.Lat, p.Location.Lng,
		p.Features.Bedrooms, p.Features.Bathrooms, p.Features.Area, p.Features.Parking, p.Features.Furnished,
		pq.Array(p.Amenities), p.UpdatedAt, p.ID)
	return requireRow(res, err)
}

// Delete soft deletes a listing so transactions that reference it keep
// their foreign key.
func (r *propertyRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE properties SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return requireRow(res, err)
}

func (r *propertyRepository) List(ctx context.Context, f domain.PropertyFilter) ([]domain.Property, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.City != "" {
		add("city ILIKE $%d", containsPattern(f.City))
	}
	if f.State != "" {
		add("state ILIKE $%d", containsPattern(f.State))
	}
	if f.MinBedrooms > 0 {
		add("bedrooms >= $%d", f.MinBedrooms)
	}
	if f.MinBathrooms > 0 {
		add("bathrooms >= $%d", f.MinBathrooms)
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.Query != "" {
		args = append(args, containsPattern(f.Query))
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	base := `SELECT ` + propertyColumns + ` FROM properties WHERE ` + strings.Join(where, " AND ")

	var count int
	countSQL := "SELECT count(*) FROM (" + base + ") as sub"
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := base + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	properties := []domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		properties = append(properties, *p)
	}
	return properties, count, rows.Err()
}

func (r *propertyRepository) IncrementViews(ctx context.Context, id string) error {
	query := `UPDATE properties SET views = views + 1 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	return requireRow(res, err)
}

// ToggleLike adds userID to likes if absent and removes it otherwise, in a
// single statement.
func (r *propertyRepository) ToggleLike(ctx context.Context, id, userID string) (*domain.LikeResult, error) {
	query := `UPDATE properties
	          SET likes = CASE WHEN $2 = ANY(likes) THEN array_remove(likes, $2) ELSE array_append(likes, $2) END
	          WHERE id = $1 AND deleted_at IS NULL
	          RETURNING $2 = ANY(likes), cardinality(likes)`
	res := &domain.LikeResult{}
	logger.DatabaseCall("ToggleLike", query, "property_id", id, "user_id", userID)
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&res.Liked, &res.Likes)
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func (r *propertyRepository) AppendImages(ctx context.Context, id string, urls []string, max int) ([]string, error) {
	query := `UPDATE properties
	          SET images = images || $2::text[], updated_at = $3
	          WHERE id = $1 AND deleted_at IS NULL AND cardinality(images) + cardinality($2::text[]) <= $4
	          RETURNING images`
	var images []string
	err := r.db.QueryRowContext(ctx, query, id, pq.Array(urls), time.Now().UTC(), max).Scan(pq.Array(&images))
	if err != nil {
		err = translate(err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return images, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// wildcards in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// requireRow turns a write that matched no row into ErrNotFound.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
