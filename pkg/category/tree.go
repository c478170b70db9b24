package category

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-scraper/pkg/api"
	"market-scraper/pkg/logger"
)

// DefaultRootID is the id of the taxonomy root on the category API.
const DefaultRootID = 1

// Tree walks the category API. The walk depth is fixed at three levels
// below the root, which is the shape of the marketplace taxonomy; it is not
// a generic tree walker.
type Tree struct {
	client api.Client
	rootID int
	log    *logger.Logger
}

func NewTree(client api.Client, rootID int, log *logger.Logger) *Tree {
	if rootID <= 0 {
		rootID = DefaultRootID
	}
	return &Tree{
		client: client,
		rootID: rootID,
		log:    log.WithField("component", "category_tree"),
	}
}

// FetchCategory issues one API call for id.
func (t *Tree) FetchCategory(ctx context.Context, id int) (Category, error) {
	resp, err := t.client.Category(ctx, id)
	if err != nil {
		return Category{}, &FetchError{ID: id, Err: err}
	}
	if resp == nil || resp.CategoryPath == nil {
		return Category{}, &FetchError{ID: id, Err: errors.New("response has no categoryPath")}
	}
	return fromNode(*resp.CategoryPath), nil
}

// FetchChildren fetches every id concurrently without a gate; the id set
// is bounded by the taxonomy. Results keep the order of ids.
func (t *Tree) FetchChildren(ctx context.Context, ids []int) []api.Result[Category] {
	results := make([]api.Result[Category], len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			c, err := t.FetchCategory(ctx, id)
			if err != nil {
				results[i] = api.Failed[Category](err)
				return
			}
			results[i] = api.OK(c)
		}(i, id)
	}
	wg.Wait()

	return results
}

// BuildLeafSet fetches root, its children and their children, then returns
// the children of every third-level node that has children. A root failure
// is returned as an error; a failed branch is logged and dropped.
func (t *Tree) BuildLeafSet(ctx context.Context) ([]Category, error) {
	start := time.Now()
	t.log.Info("Collecting all categories")

	root, err := t.FetchCategory(ctx, t.rootID)
	if err != nil {
		return nil, fmt.Errorf("root category: %w", err)
	}

	childIDs := ids(root.Children)
	branches := t.FetchChildren(ctx, childIDs)

	var leaves []Category
	dropped, uncoded := 0, 0
	for i, branch := range branches {
		if !branch.IsOK() {
			dropped++
			t.log.WithError(branch.Err).
				WithField("category_id", childIDs[i]).
				Warn("Dropping category branch")
			continue
		}
		for _, sub := range branch.Value.Children {
			if len(sub.Children) == 0 {
				continue
			}
			for _, leaf := range sub.Children {
				if !leaf.IsLeaf() {
					uncoded++
					continue
				}
				leaves = append(leaves, leaf)
			}
		}
	}

	t.log.WithFields(map[string]interface{}{
		"categories":       len(leaves),
		"dropped_branches": dropped,
		"without_code":     uncoded,
		"duration":         time.Since(start).String(),
	}).Debug("Category tree flattened")

	return leaves, nil
}

func ids(cs []Category) []int {
	out := make([]int, 0, len(cs))
	for _, c := range cs {
		if c.ID > 0 {
			out = append(out, c.ID)
		}
	}
	return out
}
