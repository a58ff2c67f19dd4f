package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/paygate/types"
)

func testItem(id string) types.Item {
	return types.Item{
		ID:       id,
		Name:     "Item " + id,
		Price:    decimal.RequireFromString("0.001"),
		Currency: "USDC",
		Content:  "content of " + id,
	}
}

func TestStatic_LookupAndIDs(t *testing.T) {
	c, err := Static(testItem("b-item"), testItem("a-item"))
	require.NoError(t, err)

	item, ok := c.Lookup("a-item")
	assert.True(t, ok)
	assert.Equal(t, "a-item", item.ID)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a-item", "b-item"}, c.IDs())
}

func TestStatic_RejectsDuplicates(t *testing.T) {
	_, err := Static(testItem("dup"), testItem("dup"))
	assert.ErrorContains(t, err, "duplicate item id")
}

func TestStatic_RejectsInvalidItems(t *testing.T) {
	missingContent := testItem("no-content")
	missingContent.Content = ""
	_, err := Static(missingContent)
	assert.Error(t, err)

	free := testItem("free")
	free.Price = decimal.Zero
	_, err = Static(free)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	data := []byte(`[
		{"id": "article", "name": "Article", "price": 0.001, "currency": "USDC", "content": "full text"},
		{"id": "report", "price": "0.25", "currency": "USDC", "content": "the report"}
	]`)

	c, err := Parse(data)
	require.NoError(t, err)

	article, ok := c.Lookup("article")
	require.True(t, ok)
	assert.Equal(t, "0.001", article.Price.String())

	report, ok := c.Lookup("report")
	require.True(t, ok)
	assert.Equal(t, "0.25", report.Price.String())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `[{"id": "article", "price": 0.001, "currency": "USDC", "content": "text"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"article"}, c.IDs())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidateForNetwork(t *testing.T) {
	c, err := Static(testItem("article"))
	require.NoError(t, err)
	assert.NoError(t, ValidateForNetwork(c, types.NetworkSolanaDevnet))

	unsupported := testItem("exotic")
	unsupported.Currency = "DOGE"
	c, err = Static(unsupported)
	require.NoError(t, err)
	assert.Error(t, ValidateForNetwork(c, types.NetworkSolanaDevnet))

	tooPrecise := testItem("dust")
	tooPrecise.Price = decimal.RequireFromString("0.0000001")
	c, err = Static(tooPrecise)
	require.NoError(t, err)
	assert.Error(t, ValidateForNetwork(c, types.NetworkSolanaDevnet))
}
