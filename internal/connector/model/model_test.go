package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc_IdentityWireForm(t *testing.T) {
	data, err := json.Marshal(NewIdentity("c-1", 42))
	require.NoError(t, err)
	assert.JSONEq(t, `["c-1",42]`, string(data))

	tests := []struct {
		in   string
		want Identity
	}{
		{`["c-1",42]`, NewIdentity("c-1", 42)},
		{`["",0]`, Identity{}},
		{`[17,"42"]`, NewIdentity("17", 42)},
		{`{"endpoint":"e","host":5}`, NewIdentity("e", 5)},
		{`null`, Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got Identity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad Identity
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &bad))
}

func TestFunc_DecodeList(t *testing.T) {
	r := Default()

	models, err := r.DecodeList(TypeCategory, []byte(`[{"id":["",1],"i18ns":[{"categoryId":["",1],"languageISO":"ger","name":"Schuhe"}]},{"id":["",2]}]`))
	require.NoError(t, err)
	require.Len(t, models, 2)

	first := models[0].(*Category)
	assert.Equal(t, int64(1), first.ID.Host)
	assert.Equal(t, "Schuhe", first.I18ns[0].Name)

	single, err := r.DecodeList(TypeImage, []byte(`{"id":["",42],"relationType":"Main"}`))
	require.NoError(t, err)
	require.Len(t, single, 1)

	_, err = r.DecodeList("Unknown", []byte(`[]`))
	assert.Error(t, err)
}

func TestFunc_CategoryIdentitiesAreAddressable(t *testing.T) {
	c := &Category{
		I18ns:          []CategoryI18n{{}},
		Invisibilities: []CategoryInvisibility{{}},
	}
	refs := c.Identities()
	require.Len(t, refs, 5)
	assert.Equal(t, TypeCustomerGroup, refs[4].Type)

	refs[0].ID.Endpoint = "c-9"
	refs[2].ID.Host = 3
	assert.Equal(t, "c-9", c.ID.Endpoint)
	assert.Equal(t, int64(3), c.I18ns[0].CategoryID.Host)
}

func TestFunc_ImageOwnerIdentity(t *testing.T) {
	img := &Image{RelationType: "Product"}
	refs := img.Identities()
	require.Len(t, refs, 2)
	assert.Equal(t, TypeProduct, refs[1].Type)

	img.RelationType = "specific"
	assert.Len(t, img.Identities(), 1)
}

func TestFunc_ChecksumChanged(t *testing.T) {
	c := Checksum{Value: "a"}
	assert.True(t, c.Changed())
	c.Known = "a"
	assert.False(t, c.Changed())
	c.Value = "b"
	assert.True(t, c.Changed())
}

func TestFunc_DecodeQueryFilter(t *testing.T) {
	f, err := DecodeQueryFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPullLimit, f.Limit)

	f, err = DecodeQueryFilter([]byte(`{"limit":5,"filters":{"parentId":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, "x", f.String("parentId"))
}
