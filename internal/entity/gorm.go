package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"gorm.io/gorm"
)

// GormProvider loads entities from the CRM database.
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a provider backed by db.
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

// Attributes implements Provider.
func (p *GormProvider) Attributes(ctx context.Context, t Type, id string) (map[string]any, error) {
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}
	// Malformed ids can never match a row.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	db := p.db.WithContext(ctx)
	switch t {
	case TypeCompany:
		var c models.Company
		if err := first(db, &c, id); err != nil {
			return nil, err
		}
		return CompanyAttributes(&c), nil
	case TypeBrand:
		var b models.Brand
		if err := first(db.Preload("Company"), &b, id); err != nil {
			return nil, err
		}
		return BrandAttributes(&b), nil
	case TypeBranch:
		var b models.Branch
		if err := first(db.Preload("Brand.Company"), &b, id); err != nil {
			return nil, err
		}
		return BranchAttributes(&b), nil
	default:
		var person models.Person
		if err := first(db.Preload("Branch.Brand.Company"), &person, id); err != nil {
			return nil, err
		}
		return PersonAttributes(&person), nil
	}
}

func first(db *gorm.DB, dest any, id string) error {
	if err := db.Where("id = ?", id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load entity: %w", err)
	}
	return nil
}
