package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SampleTemplateName names the template created by Seed
const SampleTemplateName = "Invoice"

// Seed inserts the sample companies, their brands and branches, and an
// invoice template. It does nothing when any company already exists.
func Seed(db *gorm.DB, actor uuid.UUID) error {
	var count int64
	if err := db.Model(&models.Company{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count companies: %w", err)
	}
	if count > 0 {
		slog.Info("Database already seeded, skipping", "companies", count)
		return nil
	}

	companies := []models.Company{
		{
			CompanyName: "Tech Solutions Inc.",
			TaxNumber:   "1234567890",
			Country:     "Turkey",
			City:        "Istanbul",
			District:    "Kadıköy",
			Address:     "Sample Address 1",
			ThemeColor:  "#3B82F6",
			Status:      models.EntityStatusActive,
			CreatedBy:   actor,
		},
		{
			CompanyName: "Food Industries Ltd.",
			TaxNumber:   "0987654321",
			Country:     "Turkey",
			City:        "Ankara",
			District:    "Çankaya",
			Address:     "Sample Address 2",
			ThemeColor:  "#10B981",
			Status:      models.EntityStatusActive,
			CreatedBy:   actor,
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range companies {
			company := &companies[i]
			if err := tx.Create(company).Error; err != nil {
				return fmt.Errorf("create company: %w", err)
			}
			slog.Info("Created company", "name", company.CompanyName)

			for b := 1; b <= 2; b++ {
				brand := models.Brand{
					BrandName: fmt.Sprintf("%s - Brand %d", company.CompanyName, b),
					CompanyID: company.ID,
					Country:   company.Country,
					City:      company.City,
					Status:    models.EntityStatusActive,
					CreatedBy: actor,
				}
				if err := tx.Create(&brand).Error; err != nil {
					return fmt.Errorf("create brand: %w", err)
				}

				for r := 1; r <= 3; r++ {
					branch := models.Branch{
						BranchName: fmt.Sprintf("%s - Branch %d", brand.BrandName, r),
						BrandID:    brand.ID,
						Country:    company.Country,
						City:       company.City,
						Status:     models.EntityStatusActive,
						CreatedBy:  actor,
					}
					if err := tx.Create(&branch).Error; err != nil {
						return fmt.Errorf("create branch: %w", err)
					}
				}
			}
		}

		var existing models.Template
		err := tx.Where("name = ?", SampleTemplateName).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("look up sample template: %w", err)
		}
		tmpl := models.Template{
			Name:     SampleTemplateName,
			Type:     "INVOICE",
			Category: "finance",
			Body:     "Invoice for {{company}} ({{taxNumber}}) on {{current_date}}.\nAmount: {{amount}}",
			Placeholders: datatypes.JSONMap{
				"company":   map[string]any{"label": "Company name"},
				"taxNumber": map[string]any{"label": "Tax number"},
				"amount":    map[string]any{"label": "Amount"},
			},
			Version:   1,
			IsActive:  true,
			CreatedBy: actor,
		}
		if err := tx.Create(&tmpl).Error; err != nil {
			return fmt.Errorf("create sample template: %w", err)
		}
		slog.Info("Created sample template", "id", tmpl.ID)
		return nil
	})
}
