package onto

// Realm is a tenant/namespace ("space") in the Onto platform.
type Realm struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerEmail  string `json:"ownerEmail,omitempty"`
}

// Template is an object template (schema) defined in a realm.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RealmID     string `json:"realmId,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Object is a platform object instance.
type Object struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TemplateID string `json:"templateId,omitempty"`
	RealmID    string `json:"realmId,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// SearchOptions control the search endpoints. Zero values select the
// defaults documented on each field.
type SearchOptions struct {
	// Query is the free-text search term.
	Query string

	// RealmID restricts the search to a single realm. Empty searches all
	// realms visible to the user.
	RealmID string

	// PageSize is the requested page size; defaults to DefaultPageSize.
	PageSize int

	// MaxPages bounds how many pages are fetched and aggregated. Zero
	// selects DefaultMaxPages; a negative value fetches until the platform
	// returns a short page (end of data).
	MaxPages int
}

// DefaultPageSize is the page size requested when SearchOptions.PageSize
// is zero.
const DefaultPageSize = 50

// DefaultMaxPages is the page bound applied when SearchOptions.MaxPages is
// zero. A single page keeps tool responses small unless the caller asks
// for more.
const DefaultMaxPages = 1
