package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"

	"clipvault/internal/blob"
	"clipvault/internal/cverror"
	"clipvault/internal/database"
	"clipvault/internal/model"
	"clipvault/internal/server/serializer"
	"clipvault/internal/share"
)

// shareCookiePrefix scopes an authorization credential cookie to one token.
const shareCookiePrefix = "share_auth_"

// shareHandler contains all share link handlers. The public read path
// (Meta/Verify/File/Download) never discloses why a link is unavailable; the
// management path (Create/List/Revoke/Delete) runs behind the main credential
// and does.
type shareHandler struct {
	db     database.Client
	shares share.Registry
	blobs  *blob.Store
}

///// Create
////
//

// Create registers a new link for an item with optional expiry, download cap
// and password.
func (h *shareHandler) Create(c echo.Context) error {
	// Filter params
	var params struct {
		ItemID       string `json:"itemId"`
		ExpiresIn    int64  `json:"expiresIn"`
		ExpiresAt    string `json:"expiresAt"`
		MaxDownloads *int64 `json:"maxDownloads"`
		Password     string `json:"password"`
	}
	if err := c.Bind(&params); err != nil {
		return cverror.BadRequest("Could not get share params.")
	}
	if params.ItemID == "" {
		return cverror.BadRequest("itemId is required.")
	}
	if params.MaxDownloads != nil && *params.MaxDownloads < 0 {
		return cverror.BadRequest("maxDownloads must not be negative.")
	}

	opts := share.Options{
		MaxDownloads: params.MaxDownloads,
		Password:     strings.TrimSpace(params.Password),
	}
	switch {
	case params.ExpiresAt != "":
		expiry, err := dateparse.ParseAny(params.ExpiresAt)
		if err != nil {
			return cverror.BadRequest("Malformed expiresAt.")
		}
		opts.ExpiresAt = expiry.UTC().Unix()
	case params.ExpiresIn > 0:
		opts.ExpiresAt = time.Now().UTC().Unix() + params.ExpiresIn
	}

	link, err := h.shares.Create(params.ItemID, opts)
	if err != nil {
		return err
	}

	render := echo.Map{
		"token":            link.Token,
		"url":              "/s/?token=" + link.Token,
		"requiresPassword": link.RequiresPassword(),
	}
	if link.ExpiresAt != 0 {
		render["expiresAt"] = serializer.Time(link.ExpiresAt)
	}
	if link.MaxDownloads != nil {
		render["maxDownloads"] = *link.MaxDownloads
	}
	return c.JSON(http.StatusCreated, render)
}

///// List
////
//

// List returns the management view of links: revoked, expired and exhausted
// states are all visible here, unlike the public read path.
func (h *shareHandler) List(c echo.Context) error {
	includeRevoked := boolish(c.QueryParam("includeRevoked"))
	includeInvalid := boolish(c.QueryParam("includeInvalid"))

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	switch {
	case pageSize == 0:
		pageSize = 20
	case pageSize < 1:
		pageSize = 1
	case pageSize > 100:
		pageSize = 100
	}

	links, hasMore, err := h.db.FindSharesByParams(c.QueryParam("itemId"), (page-1)*pageSize, pageSize)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Unix()
	renders := make([]map[string]interface{}, 0, len(links))
	for _, link := range links {
		if !link.Valid(now) && !includeInvalid && !(includeRevoked && link.Revoked) {
			continue
		}

		item, err := h.db.FindItem(link.ItemID)
		if err != nil && !h.db.IsNotFound(err) {
			return err
		}
		renders = append(renders, serializer.Share(link, item, now))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data":     renders,
		"page":     page,
		"pageSize": pageSize,
		"hasMore":  hasMore,
	})
}

///// Meta
////
//

// Meta returns a link's public metadata. Text content is only rendered once
// the caller is authorized.
func (h *shareHandler) Meta(c echo.Context) error {
	token := c.Param("token")
	link, err := h.shares.Resolve(token)
	if err != nil {
		return err
	}

	item, err := h.db.FindItem(link.ItemID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return cverror.NotFound("Share link not found.")
		}
		return err
	}

	authorized := h.shares.Authorized(link, shareCredential(c, token))

	itemRender := echo.Map{
		"id":       item.ID,
		"type":     item.Type,
		"fileName": item.FileName,
		"fileSize": item.FileSize,
	}
	if item.ContentType != "" {
		itemRender["contentType"] = item.ContentType
	}
	if authorized && item.Type == model.TypeText {
		itemRender["content"] = item.Content
	}

	render := echo.Map{
		"token":            link.Token,
		"item":             itemRender,
		"downloadCount":    link.DownloadCount,
		"requiresPassword": link.RequiresPassword(),
		"authorized":       authorized,
	}
	if link.ExpiresAt != 0 {
		render["expiresAt"] = serializer.Time(link.ExpiresAt)
	}
	if link.MaxDownloads != nil {
		render["maxDownloads"] = *link.MaxDownloads
	}
	return c.JSON(http.StatusOK, render)
}

///// Verify
////
//

// Verify checks the link password and sets the token-scoped credential
// cookie.
func (h *shareHandler) Verify(c echo.Context) error {
	// Filter params
	var params struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&params); err != nil {
		return cverror.BadRequest("Could not get share credentials.")
	}

	token := c.Param("token")
	credential, err := h.shares.Authorize(token, params.Password)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     shareCookiePrefix + token,
		Value:    credential,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(c),
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

///// File
////
//

// File serves the shared content for viewing. No download accounting.
func (h *shareHandler) File(c echo.Context) error {
	return h.serve(c, false)
}

///// Download
////
//

// Download serves the shared content as an attachment and counts the fetch
// against the link's quota.
func (h *shareHandler) Download(c echo.Context) error {
	return h.serve(c, true)
}

func (h *shareHandler) serve(c echo.Context, download bool) error {
	token := c.Param("token")
	link, err := h.shares.Resolve(token)
	if err != nil {
		return err
	}

	item, err := h.db.FindItem(link.ItemID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return cverror.NotFound("Share link not found.")
		}
		return err
	}

	if !h.shares.Authorized(link, shareCredential(c, token)) {
		return cverror.Unauthorized("Share password required.")
	}

	if download {
		// Counted before the bytes leave; a crash in between overcounts by
		// at most one.
		if err := h.shares.RecordDownload(token); err != nil {
			return err
		}
	}

	disposition := "inline"
	if download {
		disposition = "attachment"
	}

	if item.Type == model.TypeText && !item.HasBlob() {
		if download {
			name := item.FileName
			if name == "" {
				name = "download"
			}
			c.Response().Header().Set(echo.HeaderContentDisposition, contentDisposition(disposition, name+".txt"))
		}
		return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(item.Content))
	}

	content, err := h.blobs.Open(blob.Location{Inline: item.InlineData, Path: item.FilePath})
	if err != nil {
		return cverror.NotFound("Content is missing.")
	}
	defer content.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, contentDisposition(disposition, item.FileName))
	if item.FileSize > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(item.FileSize, 10))
	}

	ctype := item.ContentType
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, ctype, content)
}

///// Revoke
////
//

// Revoke invalidates the link without deleting its record.
func (h *shareHandler) Revoke(c echo.Context) error {
	if err := h.shares.Revoke(c.Param("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

///// Delete
////
//

// Delete removes the link record.
func (h *shareHandler) Delete(c echo.Context) error {
	if err := h.shares.Delete(c.Param("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func shareCredential(c echo.Context, token string) string {
	cookie, err := c.Cookie(shareCookiePrefix + token)
	if err != nil {
		return ""
	}
	return cookie.Value
}
