package transport

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/game_store/internal/models"
)

// ProductPatch maps product columns to their new values. Only fields present
// in the request end up in the map.
type ProductPatch map[string]any

// UserPatch maps user columns to their new values.
type UserPatch map[string]any

const dateLayout = "2006-01-02"

// ParseReleaseDate accepts a plain date or an RFC 3339 timestamp. An empty
// string means no date.
func ParseReleaseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("fechaLanzamiento must be YYYY-MM-DD")
	}
	t = t.UTC()
	return &t, nil
}

func (r CreateProductRequest) ToProduct() (*models.Product, error) {
	title := strings.TrimSpace(r.Title)
	platform := strings.TrimSpace(r.Platform)
	genre := strings.TrimSpace(r.Genre)

	switch {
	case title == "":
		return nil, errors.New("titulo is required")
	case r.Price == nil:
		return nil, errors.New("precio is required")
	case r.Price.IsNegative():
		return nil, errors.New("precio must be >= 0")
	case r.Stock < 0:
		return nil, errors.New("stock must be >= 0")
	case platform == "":
		return nil, errors.New("plataforma is required")
	case genre == "":
		return nil, errors.New("genero is required")
	}

	release, err := ParseReleaseDate(r.ReleaseDate)
	if err != nil {
		return nil, err
	}

	return &models.Product{
		Title:       title,
		Description: r.Description,
		Price:       r.Price.Round(2),
		Stock:       r.Stock,
		Platform:    platform,
		Genre:       genre,
		ReleaseDate: release,
		Developer:   r.Developer,
		AgeRating:   r.AgeRating,
		ImageURL:    r.ImageURL,
		CategoryID:  r.CategoryID,
		Active:      true,
	}, nil
}

func (r PatchProductRequest) ToPatch() (ProductPatch, error) {
	p := ProductPatch{}

	if r.Title != nil {
		v := strings.TrimSpace(*r.Title)
		if v == "" {
			return nil, errors.New("titulo cannot be empty")
		}
		p["title"] = v
	}
	if r.Description != nil {
		p["description"] = *r.Description
	}
	if r.Price != nil {
		if r.Price.IsNegative() {
			return nil, errors.New("precio must be >= 0")
		}
		p["price"] = r.Price.Round(2)
	}
	if r.Stock != nil {
		if *r.Stock < 0 {
			return nil, errors.New("stock must be >= 0")
		}
		p["stock"] = *r.Stock
	}
	if r.Platform != nil {
		v := strings.TrimSpace(*r.Platform)
		if v == "" {
			return nil, errors.New("plataforma cannot be empty")
		}
		p["platform"] = v
	}
	if r.Genre != nil {
		v := strings.TrimSpace(*r.Genre)
		if v == "" {
			return nil, errors.New("genero cannot be empty")
		}
		p["genre"] = v
	}
	if r.ReleaseDate != nil {
		t, err := ParseReleaseDate(*r.ReleaseDate)
		if err != nil {
			return nil, err
		}
		p["release_date"] = t
	}
	if r.Developer != nil {
		p["developer"] = *r.Developer
	}
	if r.AgeRating != nil {
		p["age_rating"] = *r.AgeRating
	}
	if r.ImageURL != nil {
		p["image_url"] = *r.ImageURL
	}
	if r.CategoryID != nil {
		p["category_id"] = *r.CategoryID
	}
	if r.Active != nil {
		p["active"] = *r.Active
	}

	if len(p) == 0 {
		return nil, errors.New("no fields to update")
	}
	return p, nil
}

func (r UpdateProfileRequest) ToPatch() (UserPatch, error) {
	if r.Name == nil {
		return nil, errors.New("no fields to update")
	}
	name := strings.TrimSpace(*r.Name)
	if name == "" {
		return nil, errors.New("nombre cannot be empty")
	}
	return UserPatch{"name": name}, nil
}

func (r AdminUpdateUserRequest) ToPatch() (UserPatch, error) {
	p := UserPatch{}

	if r.Name != nil {
		v := strings.TrimSpace(*r.Name)
		if v == "" {
			return nil, errors.New("nombre cannot be empty")
		}
		p["name"] = v
	}
	if r.Email != nil {
		v, err := NormalizeEmail(*r.Email)
		if err != nil {
			return nil, err
		}
		p["email"] = v
	}
	if r.Role != nil {
		role := models.Role(strings.TrimSpace(*r.Role))
		if !role.Valid() {
			return nil, fmt.Errorf("rol must be one of customer, employee, admin")
		}
		p["role"] = string(role)
	}

	if len(p) == 0 {
		return nil, errors.New("no fields to update")
	}
	return p, nil
}

// NormalizeEmail lowercases and validates an address.
func NormalizeEmail(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return "", errors.New("email is not valid")
	}
	return v, nil
}

func ValidateAddress(a *models.Address) error {
	if a == nil {
		return errors.New("direccionEnvio is required")
	}
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Province = strings.TrimSpace(a.Province)
	a.Country = strings.TrimSpace(a.Country)

	switch {
	case a.Street == "":
		return errors.New("direccionEnvio.calle is required")
	case a.City == "":
		return errors.New("direccionEnvio.ciudad is required")
	case a.PostalCode == "":
		return errors.New("direccionEnvio.codigoPostal is required")
	case a.Country == "":
		return errors.New("direccionEnvio.pais is required")
	}
	return nil
}
