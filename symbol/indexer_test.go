package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReference() *Reference {
	return &Reference{
		Tables: []Object{
			{ID: 18, Name: "Customer", Namespace: "Microsoft.Sales", Properties: map[string]string{"DataPerCompany": "true"}},
			{ID: 27, Name: "Item", Namespace: "Microsoft.Inventory"},
		},
		Pages: []Object{
			{ID: 21, Name: "CustomerCard", Namespace: "Microsoft.Sales", Dependencies: []string{"table:18:Customer"}},
		},
		Codeunits: []Object{
			{ID: 80, Name: "SalesPost", Members: []Member{{Name: "Run", Type: "procedure"}}},
		},
	}
}

func TestBuildInventory(t *testing.T) {
	inv := BuildInventory(testReference())

	require.Equal(t, 4, inv.Total)
	assert.Equal(t, 2, inv.Totals[KindTable])
	assert.Equal(t, 1, inv.Totals[KindPage])
	assert.Equal(t, 1, inv.Totals[KindCodeunit])
	assert.Len(t, inv.Descriptors, 4)

	// Category arrays are authoritative for the kind, and no descriptor
	// starts out materialized.
	for _, d := range inv.Descriptors {
		assert.True(t, d.Kind.Valid())
		assert.False(t, d.Materialized)
	}

	// Canonical kind order: tables before pages before codeunits.
	assert.Equal(t, KindTable, inv.Descriptors[0].Kind)
	assert.Equal(t, KindPage, inv.Descriptors[2].Kind)
	assert.Equal(t, KindCodeunit, inv.Descriptors[3].Kind)
}

func TestBuildInventory_Malformed(t *testing.T) {
	t.Run("nil document", func(t *testing.T) {
		inv := BuildInventory(nil)
		require.NotNil(t, inv)
		assert.Zero(t, inv.Total)
		assert.Empty(t, inv.Descriptors)
		assert.Empty(t, inv.Totals)
	})

	t.Run("empty document", func(t *testing.T) {
		inv := BuildInventory(&Reference{})
		assert.Zero(t, inv.Total)
	})

	t.Run("unaddressable objects are skipped", func(t *testing.T) {
		inv := BuildInventory(&Reference{
			Tables: []Object{{}, {ID: 18, Name: "Customer"}},
		})
		assert.Equal(t, 1, inv.Total)
	})
}

func TestBuildInventory_Dedupe(t *testing.T) {
	ref := &Reference{
		Tables: []Object{
			{ID: 18, Name: "Customer", Namespace: "Microsoft.Sales"},
			{ID: 18, Name: "Customer", Namespace: "Duplicate.Copy"},
		},
	}
	inv := BuildInventory(ref)

	require.Equal(t, 1, inv.Total)
	assert.Equal(t, "Microsoft.Sales", inv.Descriptors[0].Namespace, "first occurrence wins")
}

func TestBuildInventory_DoesNotMutateDocument(t *testing.T) {
	ref := testReference()
	before := ref.Tables[0]
	_ = BuildInventory(ref)
	assert.Equal(t, before, ref.Tables[0])
}

func TestDescriptorsByKind(t *testing.T) {
	inv := BuildInventory(testReference())

	tables := inv.DescriptorsByKind(KindTable)
	require.Len(t, tables, 2)
	assert.Equal(t, "Customer", tables[0].Name)
	assert.Equal(t, "Item", tables[1].Name)

	assert.Nil(t, inv.DescriptorsByKind(KindReport))
}

func TestMaterialize(t *testing.T) {
	ref := testReference()
	key := Key{Kind: KindPage, ID: 21, Name: "CustomerCard"}

	obj, ok := Materialize(ref, key)
	require.True(t, ok)
	assert.Equal(t, KindPage, obj.Kind)
	assert.Equal(t, uint64(21), obj.ID)
	assert.Equal(t, []string{"table:18:Customer"}, obj.Dependencies)

	t.Run("idempotent", func(t *testing.T) {
		again, ok := Materialize(ref, key)
		require.True(t, ok)
		assert.Equal(t, obj, again)
	})

	t.Run("returned value is an owned copy", func(t *testing.T) {
		got, ok := Materialize(ref, Key{Kind: KindTable, ID: 18, Name: "Customer"})
		require.True(t, ok)
		got.Properties["DataPerCompany"] = "mutated"
		assert.Equal(t, "true", ref.Tables[0].Properties["DataPerCompany"])
	})

	t.Run("unknown key", func(t *testing.T) {
		_, ok := Materialize(ref, Key{Kind: KindTable, ID: 99, Name: "Ghost"})
		assert.False(t, ok)
	})

	t.Run("nil document", func(t *testing.T) {
		_, ok := Materialize(nil, key)
		assert.False(t, ok)
	})
}

func TestKindParsing(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"table", KindTable},
		{"Table", KindTable},
		{" PAGE ", KindPage},
		{"tableextension", KindTableExtension},
		{"xmlport", KindXMLPort},
		{"controladdin", KindControlAddIn},
		{"dotnetpackage", KindOther},
		{"", KindOther},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKind(tt.in))
		})
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		assert.Equal(t, k, ParseKind(k.String()), "kind %d", k)
	}
}

func TestKeyString(t *testing.T) {
	k := Key{Kind: KindTable, ID: 18, Name: "Customer"}
	assert.Equal(t, "table:18:Customer", k.String())
}

func TestIdentityString(t *testing.T) {
	id := Identity{Locator: "/apps/base.app", Hash: "deadbeefcafef00d"}
	assert.Equal(t, "/apps/base.app@deadbeef", id.String())

	short := Identity{Locator: "x", Hash: "ab"}
	assert.Equal(t, "x@ab", short.String())
}
