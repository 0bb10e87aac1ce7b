package settings

import (
	"encoding/json"
	"errors"
)

// ErrNotConfigured means the user has no remote store credentials saved yet.
// Callers check for it before attempting any remote write.
var ErrNotConfigured = errors.New("notion integration not configured for user")

// UserSettings holds one user's remote store credentials and the four
// provisioned database IDs.
type UserSettings struct {
	UserID       string `json:"user_id"`
	NotionToken  string `json:"notion_token"`
	NotionPageID string `json:"notion_page_id"`
	ProjectsDB   string `json:"projects_db_id"`
	AreasDB      string `json:"areas_db_id"`
	ResourcesDB  string `json:"resources_db_id"`
	ArchiveDB    string `json:"archive_db_id"`
	UpdatedAtMS  int64  `json:"updated_at_ms"`
}

// Binding is the resolved remote target for one user's writes.
type Binding struct {
	Token       string
	ProjectsDB  string
	AreasDB     string
	ResourcesDB string
	ArchiveDB   string
}

// DatabaseFor maps a PARA category name to its database ID.
func (b Binding) DatabaseFor(category string) string {
	switch category {
	case "project":
		return b.ProjectsDB
	case "area":
		return b.AreasDB
	case "resource":
		return b.ResourcesDB
	case "archive":
		return b.ArchiveDB
	default:
		return ""
	}
}

// Persona is the onboarding profile used to seed the PARA framework.
type Persona struct {
	Name            string            `json:"name"`
	Age             string            `json:"age"`
	Occupation      string            `json:"occupation"`
	Interests       []string          `json:"interests"`
	CurrentProjects []string          `json:"currentProjects"`
	WorkStyle       string            `json:"workStyle"`
	Preferences     map[string]string `json:"preferences"`
}

func personaToJSON(p Persona) string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func personaFromJSON(raw string) Persona {
	var p Persona
	if raw == "" {
		return p
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Persona{}
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.CurrentProjects == nil {
		p.CurrentProjects = []string{}
	}
	if p.Preferences == nil {
		p.Preferences = map[string]string{}
	}
	return p
}
