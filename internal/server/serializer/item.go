package serializer

import (
	"time"

	"clipvault/internal/model"
)

// Time renders a unix timestamp in RFC3339 UTC.
func Time(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// Item renders an item summary for API responses and broadcast payloads.
// Inline payload bytes are never rendered.
func Item(item *model.Item) map[string]interface{} {
	render := map[string]interface{}{
		"id":         item.ID,
		"type":       item.Type,
		"sortWeight": item.SortWeight,
		"createdAt":  Time(item.CreatedAt),
		"updatedAt":  Time(item.UpdatedAt),
	}

	if item.Content != "" {
		render["content"] = item.Content
	}
	if item.FileName != "" {
		render["fileName"] = item.FileName
	}
	if item.ContentType != "" {
		render["contentType"] = item.ContentType
	}
	if item.HasBlob() || item.FileSize > 0 {
		render["fileSize"] = item.FileSize
	}
	return render
}
