package feed

import (
	"sort"

	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

// SortNewestFirst orders posts by creation timestamp descending. The sort is
// stable so ties keep their original relative order, and an unparsable
// timestamp resolves to the zero time, which sorts last.
func SortNewestFirst(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedTime().After(posts[j].CreatedTime())
	})
}

// SortOldestFirst orders comments by creation timestamp ascending, the
// display order for replies within a thread.
func SortOldestFirst(comments []*models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedTime().Before(comments[j].CreatedTime())
	})
}
