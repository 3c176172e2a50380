package model

import "time"

const TypeProduct = "Product"

type Product struct {
	ID              Identity              `json:"id"`
	MasterProductID Identity              `json:"masterProductId"`
	ManufacturerID  Identity              `json:"manufacturerId"`
	SKU             string                `json:"sku"`
	EAN             string                `json:"ean,omitempty"`
	IsActive        bool                  `json:"isActive"`
	Stock           float64               `json:"stockLevel"`
	NetPrice        float64               `json:"netPrice"`
	CreationDate    *time.Time            `json:"creationDate,omitempty"`
	Categories      []ProductToCategory   `json:"categories,omitempty"`
	I18ns           []ProductI18n         `json:"i18ns,omitempty"`
	FileDownloads   []ProductFileDownload `json:"fileDownloads,omitempty"`
	Checksum
}

type ProductToCategory struct {
	ProductID  Identity `json:"productId"`
	CategoryID Identity `json:"categoryId"`
}

type ProductI18n struct {
	ProductID   Identity `json:"productId"`
	LanguageISO string   `json:"languageISO"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
}

// ProductFileDownload is a downloadable file attached to a product.
type ProductFileDownload struct {
	CreationDate *time.Time                `json:"creationDate,omitempty"`
	MaxDays      int                       `json:"maxDays"`
	MaxDownloads int                       `json:"maxDownloads"`
	Path         string                    `json:"path"`
	PreviewPath  string                    `json:"previewPath"`
	Sort         int                       `json:"sort"`
	I18ns        []ProductFileDownloadI18n `json:"i18ns,omitempty"`
}

type ProductFileDownloadI18n struct {
	LanguageISO string `json:"languageISO"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (p *Product) ModelType() string { return TypeProduct }

func (p *Product) PrimaryIdentity() *Identity { return &p.ID }

func (p *Product) Identities() []IdentityRef {
	refs := []IdentityRef{
		{Type: TypeProduct, ID: &p.ID},
		{Type: TypeProduct, ID: &p.MasterProductID},
		{Type: TypeManufacturer, ID: &p.ManufacturerID},
	}
	for i := range p.Categories {
		refs = append(refs,
			IdentityRef{Type: TypeProduct, ID: &p.Categories[i].ProductID},
			IdentityRef{Type: TypeCategory, ID: &p.Categories[i].CategoryID},
		)
	}
	for i := range p.I18ns {
		refs = append(refs, IdentityRef{Type: TypeProduct, ID: &p.I18ns[i].ProductID})
	}
	return refs
}
