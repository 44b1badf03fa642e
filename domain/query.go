package domain

// TaskFilter narrows a task listing. Zero values mean "no constraint";
// when neither Assigned nor Created is set, every task the user is
// involved in matches.
type TaskFilter struct {
	Status   TaskStatus
	Priority TaskPriority
	Assigned bool
	Created  bool
	Overdue  bool
}

// ListOptions control sorting and pagination of task listings.
type ListOptions struct {
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies the listing defaults: dueDate ascending, first page,
// limit capped at MaxPageLimit.
func (o ListOptions) Normalize() ListOptions {
	if o.SortBy == "" {
		o.SortBy = "dueDate"
	}
	if o.SortOrder != "desc" {
		o.SortOrder = "asc"
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = DefaultPageLimit
	}
	if o.Limit > MaxPageLimit {
		o.Limit = MaxPageLimit
	}
	return o
}
