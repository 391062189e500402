package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeCondo      PropertyType = "condo"
	PropertyTypeLand       PropertyType = "land"
	PropertyTypeCommercial PropertyType = "commercial"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypeApartment, PropertyTypeCondo, PropertyTypeLand, PropertyTypeCommercial:
		return true
	}
	return false
}

// PropertyStatus is the listing availability. Values are lowercase and are
// never coerced from other spellings.
type PropertyStatus string

const (
	PropertyStatusAvailable PropertyStatus = "available"
	PropertyStatusPending   PropertyStatus = "pending"
	PropertyStatusSold      PropertyStatus = "sold"
	PropertyStatusRented    PropertyStatus = "rented"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyStatusAvailable, PropertyStatusPending, PropertyStatusSold, PropertyStatusRented:
		return true
	}
	return false
}

// Closed reports whether the listing can no longer be transacted on.
func (s PropertyStatus) Closed() bool {
	return s == PropertyStatusSold || s == PropertyStatusRented
}

type Location struct {
	Address string   `json:"address"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	ZipCode string   `json:"zipCode"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type Features struct {
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
	Area      float64 `json:"area"`
	Parking   bool    `json:"parking"`
	Furnished bool    `json:"furnished"`
}

type Property struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        PropertyType    `json:"type"`
	Status      PropertyStatus  `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Location    Location        `json:"location"`
	Features    Features        `json:"features"`
	Amenities   []string        `json:"amenities"`
	Images      []string        `json:"images"`
	OwnerID     string          `json:"ownerId"`
	Views       int64           `json:"views"`
	Likes       []string        `json:"likes"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PropertyFilter narrows a listing search. Zero values mean "no filter".
type PropertyFilter struct {
	Type         PropertyType
	Status       PropertyStatus
	City         string
	State        string
	MinBedrooms  int
	MinBathrooms int
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Query        string
	OwnerID      string
	Page         int
	Limit        int
}

type PropertyPage struct {
	Properties  []Property `json:"properties"`
	Total       int        `json:"total"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
}

type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
