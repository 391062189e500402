package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const multipartMemory = 8 << 20

type PropertyHandler struct {
	svc            service.PropertyService
	maxUploadBytes int64
}

type propertyRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        domain.PropertyType   `json:"type"`
	Status      domain.PropertyStatus `json:"status"`
	Price       decimal.Decimal       `json:"price"`
	Location    domain.Location       `json:"location"`
	Features    domain.Features       `json:"features"`
	Amenities   []string              `json:"amenities"`
}

type propertyPatchRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Type        *domain.PropertyType   `json:"type"`
	Status      *domain.PropertyStatus `json:"status"`
	Price       *decimal.Decimal       `json:"price"`
	Location    *domain.Location       `json:"location"`
	Features    *domain.Features       `json:"features"`
	Amenities   *[]string              `json:"amenities"`
}

func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req propertyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	prop, err := h.svc.Create(r.Context(), p, &domain.Property{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
		Price:       req.Price,
		Location:    req.Location,
		Features:    req.Features,
		Amenities:   req.Amenities,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, prop)
}

func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	prop, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, prop)
}

func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req propertyPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	prop, err := h.svc.Update(r.Context(), p, mux.Vars(r)["id"], service.PropertyPatch(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, prop)
}

func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), p, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PropertyHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ToggleLike(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// UploadImages accepts a multipart form whose "images" field carries one or
// more files.
func (h *PropertyHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperrors.Validation("upload exceeds the maximum request size"))
			return
		}
		writeError(w, r, apperrors.Validation("expected a multipart form with images"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	uploads := make([]service.ImageUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(uploads)
			writeError(w, r, apperrors.Validation("unreadable image "+fh.Filename))
			return
		}
		uploads = append(uploads, service.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		})
	}
	defer closeAll(uploads)

	prop, err := h.svc.AddImages(r.Context(), p, mux.Vars(r)["id"], uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, prop)
}

func closeAll(uploads []service.ImageUpload) {
	for _, u := range uploads {
		if f, ok := u.Content.(multipart.File); ok {
			_ = f.Close()
		}
	}
}

func parseFilter(r *http.Request) (domain.PropertyFilter, error) {
	q := r.URL.Query()
	f := domain.PropertyFilter{
		Type:    domain.PropertyType(q.Get("type")),
		Status:  domain.PropertyStatus(q.Get("status")),
		City:    q.Get("city"),
		State:   q.Get("state"),
		Query:   q.Get("q"),
		OwnerID: q.Get("ownerId"),
	}

	v := apperrors.ValidationErrs()
	ints := []struct {
		name string
		dst  *int
	}{
		{"minBedrooms", &f.MinBedrooms},
		{"minBathrooms", &f.MinBathrooms},
		{"page", &f.Page},
		{"limit", &f.Limit},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add(p.name, "must be a non-negative integer")
			continue
		}
		*p.dst = n
	}

	prices := []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
	}
	for _, p := range prices {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			v.Add(p.name, "must be a number")
			continue
		}
		*p.dst = &d
	}
	return f, v.Err()
}
