package model

type (
	// A Model defines an object that can be stored in database.
	Model interface {
		// GetID returns the model's ID.
		GetID() string
		// SetID defines the model's ID.
		SetID(string)
		// GetCreatedAt returns the model's creation date as a unix timestamp.
		GetCreatedAt() int64
		// SetCreatedAt defines the model's creation date.
		SetCreatedAt(int64)
		// SetUpdatedAt defines the model's last update date.
		SetUpdatedAt(int64)
	}

	// A Base contains the default model fields.
	// Timestamps are unix seconds so record ordering stays a plain integer
	// comparison whatever codec is used.
	Base struct {
		ID        string `json:"id"        msgpack:"id"         storm:"id"`
		CreatedAt int64  `json:"createdAt" msgpack:"created_at" storm:"index"`
		UpdatedAt int64  `json:"updatedAt" msgpack:"updated_at"`
	}
)

// GetID returns the model's ID.
func (m *Base) GetID() string {
	return m.ID
}

// SetID defines the model's ID.
func (m *Base) SetID(id string) {
	m.ID = id
}

// GetCreatedAt returns the model's creation date.
func (m *Base) GetCreatedAt() int64 {
	return m.CreatedAt
}

// SetCreatedAt defines the model's creation date.
func (m *Base) SetCreatedAt(t int64) {
	m.CreatedAt = t
}

// SetUpdatedAt defines the model's last update date.
func (m *Base) SetUpdatedAt(t int64) {
	m.UpdatedAt = t
}
