package model

const (
	TypeCategory      = "Category"
	TypeCustomerGroup = "CustomerGroup"
	TypeManufacturer  = "Manufacturer"
)

type Category struct {
	ID               Identity               `json:"id"`
	ParentCategoryID Identity               `json:"parentCategoryId"`
	IsActive         bool                   `json:"isActive"`
	Level            int                    `json:"level"`
	Sort             int                    `json:"sort"`
	I18ns            []CategoryI18n         `json:"i18ns,omitempty"`
	Invisibilities   []CategoryInvisibility `json:"invisibilities,omitempty"`
	Checksum
}

type CategoryI18n struct {
	CategoryID      Identity `json:"categoryId"`
	LanguageISO     string   `json:"languageISO"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	URLPath         string   `json:"urlPath,omitempty"`
}

// CategoryInvisibility hides a category from one customer group.
type CategoryInvisibility struct {
	CategoryID      Identity `json:"categoryId"`
	CustomerGroupID Identity `json:"customerGroupId"`
	ConnectorID     int      `json:"connectorId,omitempty"`
}

func (c *Category) ModelType() string { return TypeCategory }

func (c *Category) PrimaryIdentity() *Identity { return &c.ID }

func (c *Category) Identities() []IdentityRef {
	refs := []IdentityRef{
		{Type: TypeCategory, ID: &c.ID},
		{Type: TypeCategory, ID: &c.ParentCategoryID},
	}
	for i := range c.I18ns {
		refs = append(refs, IdentityRef{Type: TypeCategory, ID: &c.I18ns[i].CategoryID})
	}
	for i := range c.Invisibilities {
		refs = append(refs,
			IdentityRef{Type: TypeCategory, ID: &c.Invisibilities[i].CategoryID},
			IdentityRef{Type: TypeCustomerGroup, ID: &c.Invisibilities[i].CustomerGroupID},
		)
	}
	return refs
}

type Manufacturer struct {
	ID   Identity `json:"id"`
	Name string   `json:"name"`
	Sort int      `json:"sort"`
	WWW  string   `json:"www,omitempty"`
	Checksum
}

func (m *Manufacturer) ModelType() string { return TypeManufacturer }

func (m *Manufacturer) PrimaryIdentity() *Identity { return &m.ID }

func (m *Manufacturer) Identities() []IdentityRef {
	return []IdentityRef{{Type: TypeManufacturer, ID: &m.ID}}
}
