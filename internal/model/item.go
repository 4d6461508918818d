package model

// Item types.
const (
	TypeText  = "TEXT"
	TypeImage = "IMAGE"
	TypeFile  = "FILE"
)

// An Item represents a single clipboard entry.
// A binary payload lives either in InlineData or at FilePath (relative to the
// data directory), never both.
type Item struct {
	Base `msgpack:",inline" storm:"inline"`

	Type        string `json:"type"                  msgpack:"type"`
	Content     string `json:"content,omitempty"     msgpack:"content"`
	FileName    string `json:"fileName,omitempty"    msgpack:"file_name"`
	ContentType string `json:"contentType,omitempty" msgpack:"content_type"`
	FileSize    int64  `json:"fileSize,omitempty"    msgpack:"file_size"`
	SortWeight  int64  `json:"sortWeight"            msgpack:"sort_weight"  storm:"index"`
	InlineData  []byte `json:"-"                     msgpack:"inline_data"`
	FilePath    string `json:"-"                     msgpack:"file_path"`
}

// ValidType returns true for a known item type tag.
func ValidType(t string) bool {
	return t == TypeText || t == TypeImage || t == TypeFile
}

// HasBlob returns true when the item carries a binary payload.
func (i *Item) HasBlob() bool {
	return i.FilePath != "" || len(i.InlineData) > 0
}
