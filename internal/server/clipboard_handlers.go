package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"clipvault/internal/blob"
	"clipvault/internal/broadcast"
	"clipvault/internal/cverror"
	"clipvault/internal/database"
	"clipvault/internal/model"
	"clipvault/internal/server/serializer"
)

// clipboard contains all clipboard item handlers.
type clipboard struct {
	db     database.Client
	blobs  *blob.Store
	broker *broadcast.Broadcaster
}

///// List
////
//

// List returns one page of items in (sortWeight, createdAt, id) descending
// order, resumable through an opaque cursor.
func (h *clipboard) List(c echo.Context) error {
	var cursor *database.Cursor
	if raw := c.QueryParam("cursor"); raw != "" {
		cur, err := database.DecodeCursor(raw)
		if err != nil {
			return cverror.BadRequest("Malformed cursor.")
		}
		cursor = cur
	}

	limit, _ := strconv.Atoi(c.QueryParam("take"))
	items, hasMore, err := h.db.FindItemsByParams(c.QueryParam("search"), cursor, limit)
	if err != nil {
		return err
	}

	renders := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		renders = append(renders, serializer.Item(item))
	}

	response := echo.Map{
		"items":   renders,
		"hasMore": hasMore,
	}
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		next := database.Cursor{SortWeight: last.SortWeight, CreatedAt: last.CreatedAt, ID: last.ID}
		response["nextCursor"] = next.Encode()
	}
	return c.JSON(http.StatusOK, response)
}

///// Create
////
//

// Create ingests a new item from a multipart form. The file part streams
// through the blob store so large uploads never sit fully in memory; only the
// final metadata insert touches the database.
func (h *clipboard) Create(c echo.Context) error {
	reader, err := c.Request().MultipartReader()
	if err != nil {
		return cverror.BadRequest("Could not read multipart form.")
	}

	item := &model.Item{Type: model.TypeText}
	var loc *blob.Location
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cverror.BadRequest("Malformed multipart form.")
		}

		switch part.FormName() {
		case "type":
			value, err := formValue(part)
			if err != nil {
				return cverror.BadRequest("Malformed multipart form.")
			}
			item.Type = value
		case "content":
			value, err := formValue(part)
			if err != nil {
				return cverror.BadRequest("Malformed multipart form.")
			}
			item.Content = value
		case "file":
			item.FileName = part.FileName()
			item.ContentType = part.Header.Get(echo.HeaderContentType)

			stored, err := h.blobs.Store(part, item.FileName)
			if err != nil {
				return errors.Wrap(err, "could not store upload")
			}
			loc = &stored
		}
	}

	if !model.ValidType(item.Type) {
		return cverror.BadRequest("Unknown item type.")
	}
	if item.Content == "" && loc == nil {
		return cverror.BadRequest("Content or file is required.")
	}

	if loc != nil {
		item.FileSize = loc.Size
		item.InlineData = loc.Inline
		item.FilePath = loc.Path
	}

	if err := h.db.CreateItem(item); err != nil {
		return err
	}

	render := serializer.Item(item)
	h.broker.Publish(broadcast.EventCreated, render)
	return c.JSON(http.StatusCreated, render)
}

///// Get
////
//

// Get returns a single item's metadata. Inline payload bytes are not
// rendered; content is fetched through the file endpoint.
func (h *clipboard) Get(c echo.Context) error {
	item, err := h.db.FindItem(c.Param("id"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return cverror.NotFound("Item not found.")
		}
		return err
	}
	return c.JSON(http.StatusOK, serializer.Item(item))
}

///// Delete
////
//

// Delete removes the item, its share links and, best effort, its blob.
func (h *clipboard) Delete(c echo.Context) error {
	item, err := h.db.DeleteItem(c.Param("id"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return cverror.NotFound("Item not found.")
		}
		return err
	}

	h.blobs.Remove(blob.Location{Path: item.FilePath})
	h.broker.Publish(broadcast.EventDeleted, map[string]interface{}{"id": item.ID})
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

///// Reorder
////
//

// Reorder bumps the given ids above everything else, preserving their
// relative order, and broadcasts the new id to weight mapping.
func (h *clipboard) Reorder(c echo.Context) error {
	var params struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&params); err != nil {
		return cverror.BadRequest("Could not get reorder params.")
	}
	if len(params.IDs) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}

	weights, err := h.db.ReorderItems(params.IDs)
	if err != nil {
		return err
	}

	h.broker.Publish(broadcast.EventReordered, map[string]interface{}{
		"ids":     params.IDs,
		"weights": weights,
	})
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

///// File
////
//

// File serves the item's binary payload, inline or as an attachment when the
// download query flag is set.
func (h *clipboard) File(c echo.Context) error {
	item, err := h.db.FindItem(c.Param("id"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return cverror.NotFound("Item not found.")
		}
		return err
	}
	if !item.HasBlob() {
		return cverror.NotFound("No content for this item.")
	}

	content, err := h.blobs.Open(blob.Location{Inline: item.InlineData, Path: item.FilePath})
	if err != nil {
		return cverror.NotFound("Content is missing.")
	}
	defer content.Close()

	disposition := "inline"
	if boolish(c.QueryParam("download")) {
		disposition = "attachment"
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, contentDisposition(disposition, item.FileName))
	// Content is immutable by id, allow long-lived caching.
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	if item.FileSize > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(item.FileSize, 10))
	}

	ctype := item.ContentType
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, ctype, content)
}

func formValue(r io.Reader) (string, error) {
	payload, err := io.ReadAll(r)
	return string(payload), err
}

func boolish(value string) bool {
	switch value {
	case "1", "true", "yes":
		return true
	}
	return false
}

func contentDisposition(disposition, filename string) string {
	if filename == "" {
		filename = "download"
	}
	return fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(filename))
}
