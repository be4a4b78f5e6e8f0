package store

type Category struct {
	ID   int64
	Name string
}

// CategorySummary is a category with its referencing service count, used by
// the admin list so the UI can tell which categories are deletable.
type CategorySummary struct {
	Category
	ServiceCount int
}

type Service struct {
	ID          int64
	Name        string
	CategoryID  int64
	Category    string // joined category name
	IPURL       string
	DomainURL   string
	Description string
	Icon        string
	SortOrder   int
}

// AdminCredential is the singleton auth row holding the shared admin password.
type AdminCredential struct {
	ID           int64
	PasswordHash string
}
