package database

import (
	"regexp"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"clipvault/internal/model"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Item{}); err != nil {
		return errors.Wrap(err, "could not init item index")
	}

	err = db.Init(&model.ShareLink{})
	return errors.Wrap(err, "could not init share link index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Item{}); err != nil {
		return errors.Wrap(err, "could not reindex items")
	}

	err = db.ReIndex(&model.ShareLink{})
	return errors.Wrap(err, "could not reindex share links")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC().Unix()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == 0 {
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// IsAlreadyExists returns true if err is an already exists error.
func (c *strm) IsAlreadyExists(err error) bool {
	return errors.Cause(err) == storm.ErrAlreadyExists
}

// CreateItem persists the item with the next highest sort weight.
func (c *strm) CreateItem(item *model.Item) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	t := time.Now().UTC().Unix()
	if item.ID == "" {
		item.ID = uuid.Must(uuid.NewV4()).String()
	}
	item.CreatedAt = t
	item.UpdatedAt = t
	item.SortWeight = maxSortWeight(tx) + 1

	if err := tx.Save(item); err != nil {
		return errors.Wrap(err, "could not save item")
	}
	return errors.Wrap(tx.Commit(), "could not commit item creation")
}

// maxSortWeight returns the highest sort weight in use, 0 when the table is
// empty. Must run inside the caller's transaction so the read and the
// subsequent write cannot race another creation.
func maxSortWeight(node storm.Node) int64 {
	var top model.Item
	if err := node.Select().OrderBy("SortWeight").Reverse().First(&top); err != nil {
		return 0
	}
	return top.SortWeight
}

// FindItem returns the item for the given id (UUID).
func (c *strm) FindItem(id string) (*model.Item, error) {
	var item model.Item
	if err := c.db.One("ID", id, &item); err != nil {
		return nil, errors.Wrap(err, "could not find item")
	}
	return &item, nil
}

// FindItemsByParams returns one page of items strictly after the cursor.
func (c *strm) FindItemsByParams(search string, cursor *Cursor, limit int) ([]*model.Item, bool, error) {
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 1:
		limit = 1
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	query := []q.Matcher{}
	if search != "" {
		pattern := "(?i)" + regexp.QuoteMeta(search)
		query = append(query, q.Or(q.Re("Content", pattern), q.Re("FileName", pattern)))
	}
	if cursor != nil {
		// Composite strict-after inequality over the descending total order.
		query = append(query, q.Or(
			q.Lt("SortWeight", cursor.SortWeight),
			q.And(q.Eq("SortWeight", cursor.SortWeight), q.Lt("CreatedAt", cursor.CreatedAt)),
			q.And(q.Eq("SortWeight", cursor.SortWeight), q.Eq("CreatedAt", cursor.CreatedAt), q.Lt("ID", cursor.ID)),
		))
	}

	items := make([]*model.Item, 0)
	err := c.db.Select(query...).
		OrderBy("SortWeight", "CreatedAt", "ID").
		Reverse().
		Limit(limit + 1).
		Find(&items)
	if err != nil && !c.IsNotFound(err) {
		return nil, false, errors.Wrap(err, "could not find items")
	}

	var overLimit bool
	if len(items) > limit {
		items = items[:limit]
		overLimit = true
	}

	return items, overLimit, nil
}

// ReorderItems assigns strictly decreasing weights to the given ids.
func (c *strm) ReorderItems(ids []string) (map[string]int64, error) {
	weights := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return weights, nil
	}

	tx, err := c.db.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Unix()
	base := maxSortWeight(tx) + int64(len(ids))
	for i, id := range ids {
		var item model.Item
		if err := tx.One("ID", id, &item); err != nil {
			if errors.Cause(err) == storm.ErrNotFound {
				continue // unknown ids are skipped, the rest keep their slots
			}
			return nil, errors.Wrap(err, "could not load item for reorder")
		}

		item.SortWeight = base - int64(i)
		item.UpdatedAt = now
		if err := tx.Save(&item); err != nil {
			return nil, errors.Wrap(err, "could not save reordered item")
		}
		weights[id] = item.SortWeight
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "could not commit reorder")
	}
	return weights, nil
}

// DeleteItem removes the item and cascades deletion of its share links.
func (c *strm) DeleteItem(id string) (*model.Item, error) {
	tx, err := c.db.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var item model.Item
	if err := tx.One("ID", id, &item); err != nil {
		return nil, errors.Wrap(err, "could not find item")
	}

	// Share links die with their item, inside the same transaction.
	err = tx.Select(q.Eq("ItemID", id)).Delete(&model.ShareLink{})
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return nil, errors.Wrap(err, "could not delete item's share links")
	}

	if err := tx.DeleteStruct(&item); err != nil {
		return nil, errors.Wrap(err, "could not delete item")
	}

	return &item, errors.Wrap(tx.Commit(), "could not commit item deletion")
}

// CreateShare inserts the link, failing on token conflict.
func (c *strm) CreateShare(link *model.ShareLink) error {
	var existing model.ShareLink
	err := c.db.One("Token", link.Token, &existing)
	if err == nil {
		return errors.Wrap(storm.ErrAlreadyExists, "share token conflict")
	}
	if errors.Cause(err) != storm.ErrNotFound {
		return errors.Wrap(err, "could not check share token")
	}

	return c.Save(link)
}

// FindShare returns the link for the given token.
func (c *strm) FindShare(token string) (*model.ShareLink, error) {
	var link model.ShareLink
	if err := c.db.One("Token", token, &link); err != nil {
		return nil, errors.Wrap(err, "could not find share link")
	}
	return &link, nil
}

// FindSharesByParams returns links ordered by creation date descending.
func (c *strm) FindSharesByParams(itemID string, skip, limit int) ([]*model.ShareLink, bool, error) {
	query := []q.Matcher{}
	if itemID != "" {
		query = append(query, q.Eq("ItemID", itemID))
	}

	links := make([]*model.ShareLink, 0)
	err := c.db.Select(query...).
		OrderBy("CreatedAt").
		Reverse().
		Skip(skip).
		Limit(limit + 1).
		Find(&links)
	if err != nil && !c.IsNotFound(err) {
		return nil, false, errors.Wrap(err, "could not find share links")
	}

	var overLimit bool
	if len(links) > limit {
		links = links[:limit]
		overLimit = true
	}

	return links, overLimit, nil
}

// IncrementDownloadCount adds one to the link's download counter.
func (c *strm) IncrementDownloadCount(token string) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var link model.ShareLink
	if err := tx.One("Token", token, &link); err != nil {
		return errors.Wrap(err, "could not find share link")
	}

	link.DownloadCount++
	link.UpdatedAt = time.Now().UTC().Unix()
	if err := tx.Save(&link); err != nil {
		return errors.Wrap(err, "could not save share link")
	}
	return errors.Wrap(tx.Commit(), "could not commit download count")
}

// RevokeShare flips the link's revoked flag.
func (c *strm) RevokeShare(token string) error {
	var link model.ShareLink
	if err := c.db.One("Token", token, &link); err != nil {
		return errors.Wrap(err, "could not find share link")
	}

	link.Revoked = true
	link.UpdatedAt = time.Now().UTC().Unix()
	return errors.Wrap(c.db.Save(&link), "could not save share link")
}

// DeleteShare removes the link.
func (c *strm) DeleteShare(token string) error {
	var link model.ShareLink
	if err := c.db.One("Token", token, &link); err != nil {
		return errors.Wrap(err, "could not find share link")
	}
	return errors.Wrap(c.db.DeleteStruct(&link), "could not delete share link")
}
