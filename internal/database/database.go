package database

import (
	"clipvault/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsAlreadyExists returns true if err is an already exists error.
		IsAlreadyExists(err error) bool

		ItemInteraction
		ShareInteraction
	}

	// An ItemInteraction defines all the methods used to interact with item record(s).
	ItemInteraction interface {
		// CreateItem persists the item with the next highest sort weight.
		// The max-weight read and the insert share one transaction so
		// concurrent creations cannot observe the same maximum.
		CreateItem(item *model.Item) error
		// FindItem returns the item for the given id (UUID).
		FindItem(id string) (*model.Item, error)
		// FindItemsByParams returns one page of items ordered by
		// (sortWeight, createdAt, id) descending, strictly after the given
		// cursor. search substring-matches content or file name. limit is
		// clamped to [1,48], 0 means the default page size. It also returns
		// a boolean to true if there are more items than the given limit.
		FindItemsByParams(search string, cursor *Cursor, limit int) ([]*model.Item, bool, error)
		// ReorderItems assigns strictly decreasing weights to the given ids
		// in caller order, all above every pre-existing weight, atomically.
		// It returns the new id to weight mapping.
		ReorderItems(ids []string) (map[string]int64, error)
		// DeleteItem removes the item and cascades deletion of its share
		// links in the same transaction. It returns the removed item so the
		// caller can clean up any on-disk blob.
		DeleteItem(id string) (*model.Item, error)
	}

	// A ShareInteraction defines all the methods used to interact with share link record(s).
	ShareInteraction interface {
		// CreateShare inserts the link. A token conflict is a fatal error,
		// never an upsert.
		CreateShare(link *model.ShareLink) error
		// FindShare returns the link for the given token.
		FindShare(token string) (*model.ShareLink, error)
		// FindSharesByParams returns links ordered by creation date
		// descending, optionally filtered by item id, skipping skip rows.
		// It also returns a boolean to true if there are more links than the
		// given limit.
		FindSharesByParams(itemID string, skip, limit int) ([]*model.ShareLink, bool, error)
		// IncrementDownloadCount adds one to the link's download counter as
		// its own atomic update.
		IncrementDownloadCount(token string) error
		// RevokeShare flips the link's revoked flag. One-way.
		RevokeShare(token string) error
		// DeleteShare removes the link.
		DeleteShare(token string) error
	}
)

// Page size bounds for item listing.
const (
	DefaultPageSize = 24
	MaxPageSize     = 48
)
