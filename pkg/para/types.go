package para

import "strings"

// Category partitions elements into the four PARA buckets.
type Category string

const (
	CategoryProject  Category = "project"
	CategoryArea     Category = "area"
	CategoryResource Category = "resource"
	CategoryArchive  Category = "archive"
)

// Categories lists all buckets in canonical order.
var Categories = []Category{CategoryProject, CategoryArea, CategoryResource, CategoryArchive}

// ParseCategory normalizes raw classifier output into a Category.
// Unknown values default to resource, the least committal bucket.
func ParseCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryProject:
		return CategoryProject
	case CategoryArea:
		return CategoryArea
	case CategoryArchive:
		return CategoryArchive
	default:
		return CategoryResource
	}
}

// Priority levels accepted on elements and tasks.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Element is one PARA record in a user's working set.
// Category is immutable once assigned; Confirmed transitions false->true only.
type Element struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        Category `json:"type"`
	Priority    string   `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Context     string   `json:"context,omitempty"`
	Confirmed   bool     `json:"confirmed"`
}

// Task is a flat extracted action item. Tasks carry no stable identity;
// title equality is the in-session dedup key.
type Task struct {
	Title    string `json:"title"`
	Priority string `json:"priority,omitempty"`
	DueDate  string `json:"dueDate,omitempty"`
	Category string `json:"category,omitempty"`
}

// Batch is one extraction pass over a conversation, keyed by category.
type Batch struct {
	Projects  []Element `json:"projects"`
	Areas     []Element `json:"areas"`
	Resources []Element `json:"resources"`
	Archives  []Element `json:"archives"`
}

// ListFor returns the batch slice for a category.
func (b *Batch) ListFor(cat Category) []Element {
	switch cat {
	case CategoryProject:
		return b.Projects
	case CategoryArea:
		return b.Areas
	case CategoryResource:
		return b.Resources
	case CategoryArchive:
		return b.Archives
	default:
		return nil
	}
}

// SetListFor replaces the batch slice for a category.
func (b *Batch) SetListFor(cat Category, els []Element) {
	switch cat {
	case CategoryProject:
		b.Projects = els
	case CategoryArea:
		b.Areas = els
	case CategoryResource:
		b.Resources = els
	case CategoryArchive:
		b.Archives = els
	}
}

// Len counts elements across all four categories.
func (b *Batch) Len() int {
	return len(b.Projects) + len(b.Areas) + len(b.Resources) + len(b.Archives)
}

// All returns every element in canonical category order.
func (b *Batch) All() []Element {
	out := make([]Element, 0, b.Len())
	for _, cat := range Categories {
		out = append(out, b.ListFor(cat)...)
	}
	return out
}

// Message is the provider-agnostic conversation record the classifier sees.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
