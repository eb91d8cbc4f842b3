package entity

import "github.com/tahakubilay/Full-CRM-Claude/internal/models"

// CompanyAttributes flattens a company. Besides its own fields it exposes the
// short aliases "company" and "name".
func CompanyAttributes(c *models.Company) map[string]any {
	attrs := map[string]any{
		"id":          c.ID.String(),
		"companyName": c.CompanyName,
		"taxNumber":   c.TaxNumber,
		"country":     c.Country,
		"city":        c.City,
		"district":    c.District,
		"address":     c.Address,
		"phones":      c.Phones,
		"emails":      c.Emails,
		"themeColor":  c.ThemeColor,
		"status":      string(c.Status),
		"company":     c.CompanyName,
		"name":        c.CompanyName,
	}
	return attrs
}

// BrandAttributes flattens a brand and, when loaded, its company name.
func BrandAttributes(b *models.Brand) map[string]any {
	attrs := map[string]any{
		"id":         b.ID.String(),
		"companyId":  b.CompanyID.String(),
		"brandName":  b.BrandName,
		"logo":       b.Logo,
		"taxNumber":  b.TaxNumber,
		"country":    b.Country,
		"city":       b.City,
		"district":   b.District,
		"address":    b.Address,
		"phones":     b.Phones,
		"emails":     b.Emails,
		"iban":       b.IBAN,
		"themeColor": b.ThemeColor,
		"status":     string(b.Status),
		"brand":      b.BrandName,
		"name":       b.BrandName,
	}
	if b.Company != nil {
		attrs["companyName"] = b.Company.CompanyName
		attrs["company"] = b.Company.CompanyName
	}
	return attrs
}

// BranchAttributes flattens a branch and its loaded brand and company.
func BranchAttributes(b *models.Branch) map[string]any {
	attrs := map[string]any{
		"id":         b.ID.String(),
		"brandId":    b.BrandID.String(),
		"branchName": b.BranchName,
		"logo":       b.Logo,
		"sgkNumber":  b.SGKNumber,
		"country":    b.Country,
		"city":       b.City,
		"district":   b.District,
		"address":    b.Address,
		"phones":     b.Phones,
		"emails":     b.Emails,
		"iban":       b.IBAN,
		"status":     string(b.Status),
		"branch":     b.BranchName,
		"name":       b.BranchName,
	}
	if b.Brand != nil {
		attrs["brandName"] = b.Brand.BrandName
		attrs["brand"] = b.Brand.BrandName
		if b.Brand.Company != nil {
			attrs["companyName"] = b.Brand.Company.CompanyName
			attrs["company"] = b.Brand.Company.CompanyName
		}
	}
	return attrs
}

// PersonAttributes flattens a person and the branch they belong to.
func PersonAttributes(p *models.Person) map[string]any {
	attrs := map[string]any{
		"id":         p.ID.String(),
		"firstName":  p.FirstName,
		"lastName":   p.LastName,
		"fullName":   p.FullName(),
		"nationalId": p.NationalID,
		"photo":      p.Photo,
		"country":    p.Country,
		"city":       p.City,
		"district":   p.District,
		"address":    p.Address,
		"phones":     p.Phones,
		"emails":     p.Emails,
		"iban":       p.IBAN,
		"status":     string(p.Status),
		"person":     p.FullName(),
		"name":       p.FullName(),
	}
	if p.Branch != nil {
		for k, v := range BranchAttributes(p.Branch) {
			switch k {
			case "branchName", "branch", "brandName", "brand", "companyName", "company":
				attrs[k] = v
			}
		}
		attrs["branchId"] = p.Branch.ID.String()
	}
	return attrs
}
