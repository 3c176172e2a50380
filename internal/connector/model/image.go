package model

import "strings"

const TypeImage = "Image"

// Relation types an image can be attached to.
const (
	RelationProduct      = "product"
	RelationCategory     = "category"
	RelationManufacturer = "manufacturer"
)

type Image struct {
	ID           Identity `json:"id"`
	ForeignKey   Identity `json:"foreignKey"`
	RelationType string   `json:"relationType"`
	RemoteURL    string   `json:"remoteUrl,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	Name         string   `json:"name,omitempty"`
	Sort         int      `json:"sort"`
	Checksum
}

func (i *Image) ModelType() string { return TypeImage }

func (i *Image) PrimaryIdentity() *Identity { return &i.ID }

func (i *Image) Identities() []IdentityRef {
	refs := []IdentityRef{{Type: TypeImage, ID: &i.ID}}
	if owner := i.ownerType(); owner != "" {
		refs = append(refs, IdentityRef{Type: owner, ID: &i.ForeignKey})
	}
	return refs
}

func (i *Image) ownerType() string {
	switch strings.ToLower(i.RelationType) {
	case RelationProduct:
		return TypeProduct
	case RelationCategory:
		return TypeCategory
	case RelationManufacturer:
		return TypeManufacturer
	}
	return ""
}

func (i *Image) HostID() int64 { return i.ID.Host }

func (i *Image) Relation() string { return i.RelationType }

func (i *Image) Remote() string { return i.RemoteURL }

func (i *Image) SetFilename(path string) { i.Filename = path }
