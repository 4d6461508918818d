package model

// A ShareLink is a capability token granting time and quota bounded access to
// a single item. Deleting the item deletes its links.
type ShareLink struct {
	Token         string `json:"token"         msgpack:"token"          storm:"id"`
	ItemID        string `json:"itemId"        msgpack:"item_id"        storm:"index"`
	ExpiresAt     int64  `json:"expiresAt"     msgpack:"expires_at"`
	MaxDownloads  *int64 `json:"maxDownloads"  msgpack:"max_downloads"`
	DownloadCount int64  `json:"downloadCount" msgpack:"download_count"`
	Revoked       bool   `json:"revoked"       msgpack:"revoked"`
	PasswordHash  string `json:"-"             msgpack:"password_hash"`
	CreatedAt     int64  `json:"createdAt"     msgpack:"created_at"     storm:"index"`
	UpdatedAt     int64  `json:"updatedAt"     msgpack:"updated_at"`
}

// GetID returns the link's token.
func (s *ShareLink) GetID() string {
	return s.Token
}

// SetID defines the link's token.
func (s *ShareLink) SetID(id string) {
	s.Token = id
}

// GetCreatedAt returns the link's creation date.
func (s *ShareLink) GetCreatedAt() int64 {
	return s.CreatedAt
}

// SetCreatedAt defines the link's creation date.
func (s *ShareLink) SetCreatedAt(t int64) {
	s.CreatedAt = t
}

// SetUpdatedAt defines the link's last update date.
func (s *ShareLink) SetUpdatedAt(t int64) {
	s.UpdatedAt = t
}

// RequiresPassword returns true when the link is password gated.
func (s *ShareLink) RequiresPassword() bool {
	return s.PasswordHash != ""
}

// Valid reports whether the link can still serve content at the given time.
// It is recomputed on every access since both the clock and the download
// counter move independently of the row's last write.
func (s *ShareLink) Valid(now int64) bool {
	if s.Revoked {
		return false
	}
	if s.ExpiresAt != 0 && s.ExpiresAt <= now {
		return false
	}
	if s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads {
		return false
	}
	return true
}
