package serializer

import (
	"clipvault/internal/model"
)

// Share renders a link for the management listing, joined with a summary of
// its item. Unlike the public read path, this view discloses why a link is
// invalid (revocation, expiry, exhaustion are all visible).
func Share(link *model.ShareLink, item *model.Item, now int64) map[string]interface{} {
	render := map[string]interface{}{
		"token":            link.Token,
		"url":              "/s/?token=" + link.Token,
		"downloadCount":    link.DownloadCount,
		"revoked":          link.Revoked,
		"requiresPassword": link.RequiresPassword(),
		"valid":            link.Valid(now),
		"createdAt":        Time(link.CreatedAt),
	}

	if link.ExpiresAt != 0 {
		render["expiresAt"] = Time(link.ExpiresAt)
	}
	if link.MaxDownloads != nil {
		render["maxDownloads"] = *link.MaxDownloads
	}

	if item != nil {
		render["item"] = map[string]interface{}{
			"id":       item.ID,
			"type":     item.Type,
			"fileName": item.FileName,
			"fileSize": item.FileSize,
		}
	}
	return render
}
