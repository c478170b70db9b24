package category

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/pkg/api/apitest"
	"market-scraper/pkg/logger"
)

func newFakeTaxonomy() *apitest.Fake {
	f := apitest.NewFake()
	f.Categories[1] = `{"categoryPath":{"id":1,"name":"Root","children":[
		{"id":10,"name":"Vehicles"},
		{"id":20,"name":"Home"},
		"not-a-node"
	]}}`
	f.Categories[10] = `{"categoryPath":{"id":10,"name":"Vehicles","children":[
		{"id":11,"name":"Cars","children":[
			{"id":111,"name":"Cars: used","code":"cars-used"},
			{"id":112,"name":"Cars, new","code":"cars-new"}
		]},
		{"id":12,"name":"Boats"},
		"Motorbikes"
	]}}`
	f.Categories[20] = `{"categoryPath":{"id":20,"name":"Home","children":[
		{"id":21,"name":"Furniture","children":[
			{"id":211,"name":"Chairs","code":"chairs"},
			{"id":212,"name":"Uncoded"}
		]}
	]}}`
	return f
}

func TestBuildLeafSet(t *testing.T) {
	tree := NewTree(newFakeTaxonomy(), DefaultRootID, logger.Nop())

	leaves, err := tree.BuildLeafSet(context.Background())
	require.NoError(t, err)

	var codes []string
	for _, l := range leaves {
		assert.True(t, l.IsLeaf(), "%s must be a leaf", l.Name)
		codes = append(codes, l.ListingCode)
	}
	assert.ElementsMatch(t, []string{"cars-used", "cars-new", "chairs"}, codes)
}

func TestBuildLeafSet_SkipsChildlessGrandchildren(t *testing.T) {
	tree := NewTree(newFakeTaxonomy(), DefaultRootID, logger.Nop())

	leaves, err := tree.BuildLeafSet(context.Background())
	require.NoError(t, err)

	for _, l := range leaves {
		assert.NotEqual(t, "Boats", l.Name)
		assert.NotEqual(t, 12, l.ID)
	}
}

func TestBuildLeafSet_RootFailureIsFatal(t *testing.T) {
	f := newFakeTaxonomy()
	f.CategoryErr[1] = errors.New("connection refused")
	tree := NewTree(f, DefaultRootID, logger.Nop())

	leaves, err := tree.BuildLeafSet(context.Background())
	require.Error(t, err)
	assert.Nil(t, leaves)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.ID)
}

func TestBuildLeafSet_BranchFailureIsDropped(t *testing.T) {
	f := newFakeTaxonomy()
	f.CategoryErr[10] = errors.New("timeout")
	tree := NewTree(f, DefaultRootID, logger.Nop())

	leaves, err := tree.BuildLeafSet(context.Background())
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "chairs", leaves[0].ListingCode)
}

func TestFetchChildren_KeepsOrderAndReportsFailures(t *testing.T) {
	f := newFakeTaxonomy()
	tree := NewTree(f, DefaultRootID, logger.Nop())

	results := tree.FetchChildren(context.Background(), []int{20, 999, 10})
	require.Len(t, results, 3)
	assert.True(t, results[0].IsOK())
	assert.Equal(t, "Home", results[0].Value.Name)
	assert.False(t, results[1].IsOK())
	assert.Error(t, results[1].Err)
	assert.True(t, results[2].IsOK())
	assert.Equal(t, 10, results[2].Value.ID)
}

func TestFetchCategory_MissingPath(t *testing.T) {
	f := newFakeTaxonomy()
	f.Categories[20] = `{}`
	tree := NewTree(f, DefaultRootID, logger.Nop())

	_, err := tree.FetchCategory(context.Background(), 20)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 20, fe.ID)

	leaves, err := tree.BuildLeafSet(context.Background())
	require.NoError(t, err)
	require.Len(t, leaves, 2, "the empty branch is dropped, the other survives")
}

func TestFromNode_DropsStringChildren(t *testing.T) {
	f := newFakeTaxonomy()
	tree := NewTree(f, DefaultRootID, logger.Nop())

	c, err := tree.FetchCategory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, c.Children, 2)
	assert.Equal(t, "Cars", c.Children[0].Name)
	assert.Len(t, c.Children[0].Children, 2)
	assert.False(t, c.Children[1].IsLeaf(), "uncoded childless node is not a leaf")
}
