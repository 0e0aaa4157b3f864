package models

import (
	"time"

	"github.com/google/uuid"
)

type Bookmark struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookmarkIndex - множество закладок пользователя, построенное по последнему снимку.
type BookmarkIndex map[uuid.UUID]struct{}

func NewBookmarkIndex(bookmarks []Bookmark) BookmarkIndex {
	idx := make(BookmarkIndex, len(bookmarks))
	for _, b := range bookmarks {
		idx[b.ListingID] = struct{}{}
	}
	return idx
}

func (idx BookmarkIndex) Contains(listingID uuid.UUID) bool {
	_, ok := idx[listingID]
	return ok
}
