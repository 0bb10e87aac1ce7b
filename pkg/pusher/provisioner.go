package pusher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/paraflow/paraflow/pkg/notion"
	"github.com/paraflow/paraflow/pkg/settings"
)

// ErrNoParentPage means the integration cannot see any page to create the
// framework under.
var ErrNoParentPage = errors.New("no pages found: share at least one page in your workspace with the integration")

// ProvisionState tracks where an EnsureFramework run ended up.
type ProvisionState string

const (
	StateUnchecked     ProvisionState = "unchecked"
	StateFoundExisting ProvisionState = "found_existing"
	StateNeedsCreation ProvisionState = "needs_creation"
	StateProvisioned   ProvisionState = "provisioned"
	StateFailed        ProvisionState = "failed"
)

// Framework reports the four category database IDs and how they were reached.
type Framework struct {
	State       ProvisionState
	ProjectsDB  string
	AreasDB     string
	ResourcesDB string
	ArchiveDB   string
	Created     bool
	SeededRows  int
}

// Binding converts the framework into a write target for the given token.
func (f *Framework) Binding(token string) settings.Binding {
	return settings.Binding{
		Token:       token,
		ProjectsDB:  f.ProjectsDB,
		AreasDB:     f.AreasDB,
		ResourcesDB: f.ResourcesDB,
		ArchiveDB:   f.ArchiveDB,
	}
}

const (
	titleProjects  = "Projects"
	titleAreas     = "Areas"
	titleResources = "Resources"
	titleArchive   = "Archive"
)

var standardLifeAreas = []string{"Health", "Finances", "Relationships", "Personal Development"}

// Provisioner idempotently ensures the four PARA databases exist for a user.
// Discovery always runs before creation, so re-invocation after any failure
// converges to the same four IDs instead of duplicating databases.
type Provisioner struct {
	store  Store
	logger *zap.Logger
}

func NewProvisioner(store Store, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{store: store, logger: logger}
}

// EnsureFramework discovers or creates the PARA databases, seeding fresh ones
// from the persona. persona may be nil; creation then skips seeding.
func (p *Provisioner) EnsureFramework(ctx context.Context, userID string, persona *settings.Persona) (*Framework, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &Framework{State: StateFailed}, fmt.Errorf("user id is required")
	}

	existing, err := p.discover(ctx, userID)
	if err != nil {
		return &Framework{State: StateFailed}, fmt.Errorf("framework discovery: %w", err)
	}
	if existing != nil {
		p.logger.Info("existing framework found",
			zap.String("user_id", userID),
			zap.String("projects_db", existing.ProjectsDB))
		return existing, nil
	}

	created, err := p.create(ctx, userID, persona)
	if err != nil {
		return &Framework{State: StateFailed}, err
	}
	return created, nil
}

// discover searches the workspace for databases titled after the four PARA
// categories. At least Projects and Areas must match to count as an existing
// framework.
func (p *Provisioner) discover(ctx context.Context, userID string) (*Framework, error) {
	results, err := p.store.Search(ctx, "", "database")
	if err != nil {
		return nil, err
	}

	byTitle := map[string]string{}
	for _, result := range results {
		if result.Object != "database" {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(result.PlainTitle()))
		if _, taken := byTitle[title]; title != "" && !taken {
			byTitle[title] = result.ID
		}
	}

	projectsID := byTitle[strings.ToLower(titleProjects)]
	areasID := byTitle[strings.ToLower(titleAreas)]
	if projectsID == "" || areasID == "" {
		return nil, nil
	}

	fw := &Framework{
		State:       StateFoundExisting,
		ProjectsDB:  projectsID,
		AreasDB:     areasID,
		ResourcesDB: byTitle[strings.ToLower(titleResources)],
		ArchiveDB:   byTitle[strings.ToLower(titleArchive)],
	}

	p.verifyOwnership(ctx, fw, userID)
	return fw, nil
}

// verifyOwnership probes one Projects row for the user's id marker. This is
// an optimistic trust check: if the token can see matching databases they are
// treated as the user's, and inability to verify never blocks discovery.
func (p *Provisioner) verifyOwnership(ctx context.Context, fw *Framework, userID string) {
	result, err := p.store.QueryDatabase(ctx, fw.ProjectsDB, 1)
	if err != nil {
		p.logger.Warn("ownership probe failed, trusting discovered framework",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	if len(result.Results) == 0 {
		return
	}
	for _, prop := range result.Results[0].Properties {
		if prop.Type == "rich_text" && prop.PlainText() == userID {
			return
		}
	}
	p.logger.Warn("discovered framework has no user marker, trusting access",
		zap.String("user_id", userID))
}

func (p *Provisioner) create(ctx context.Context, userID string, persona *settings.Persona) (*Framework, error) {
	pages, err := p.store.Search(ctx, "", "page")
	if err != nil {
		return nil, fmt.Errorf("find parent page: %w", err)
	}
	var parentID string
	for _, page := range pages {
		if page.Object == "page" {
			parentID = page.ID
			break
		}
	}
	if parentID == "" {
		return nil, ErrNoParentPage
	}

	projectsDB, err := p.store.CreateDatabase(ctx, parentID, titleProjects, projectsSchema())
	if err != nil {
		return nil, fmt.Errorf("create Projects database: %w", err)
	}
	areasDB, err := p.store.CreateDatabase(ctx, parentID, titleAreas, areasSchema())
	if err != nil {
		return nil, fmt.Errorf("create Areas database: %w", err)
	}
	resourcesDB, err := p.store.CreateDatabase(ctx, parentID, titleResources, resourcesSchema())
	if err != nil {
		return nil, fmt.Errorf("create Resources database: %w", err)
	}
	archiveDB, err := p.store.CreateDatabase(ctx, parentID, titleArchive, archiveSchema())
	if err != nil {
		return nil, fmt.Errorf("create Archive database: %w", err)
	}

	fw := &Framework{
		State:       StateProvisioned,
		ProjectsDB:  projectsDB.ID,
		AreasDB:     areasDB.ID,
		ResourcesDB: resourcesDB.ID,
		ArchiveDB:   archiveDB.ID,
		Created:     true,
	}

	if persona != nil {
		seeded, err := p.seed(ctx, fw, userID, *persona)
		if err != nil {
			return nil, fmt.Errorf("seed framework: %w", err)
		}
		fw.SeededRows = seeded
	}

	p.logger.Info("framework created",
		zap.String("user_id", userID),
		zap.String("parent_page", parentID),
		zap.Int("seeded_rows", fw.SeededRows))
	return fw, nil
}

// seed writes the persona-derived starter rows. Every row carries the UserId
// marker so later ownership probes succeed deterministically.
func (p *Provisioner) seed(ctx context.Context, fw *Framework, userID string, persona settings.Persona) (int, error) {
	seeded := 0
	marker := notion.RichTextValue(userID)

	for _, project := range persona.CurrentProjects {
		project = strings.TrimSpace(project)
		if project == "" {
			continue
		}
		_, err := p.store.CreatePage(ctx, fw.ProjectsDB, map[string]interface{}{
			"Name":     notion.TitleValue(project),
			"Status":   notion.SelectValue("Not Started"),
			"Priority": notion.SelectValue("Medium"),
			"UserId":   marker,
		})
		if err != nil {
			return seeded, err
		}
		seeded++
	}

	if occupation := strings.TrimSpace(persona.Occupation); occupation != "" {
		_, err := p.store.CreatePage(ctx, fw.AreasDB, map[string]interface{}{
			"Name":           notion.TitleValue("Work"),
			"Responsibility": notion.RichTextValue(occupation),
			"UserId":         marker,
		})
		if err != nil {
			return seeded, err
		}
		seeded++
	}

	for _, area := range standardLifeAreas {
		_, err := p.store.CreatePage(ctx, fw.AreasDB, map[string]interface{}{
			"Name":   notion.TitleValue(area),
			"UserId": marker,
		})
		if err != nil {
			return seeded, err
		}
		seeded++
	}

	for _, interest := range persona.Interests {
		interest = strings.TrimSpace(interest)
		if interest == "" {
			continue
		}
		_, err := p.store.CreatePage(ctx, fw.ResourcesDB, map[string]interface{}{
			"Name":     notion.TitleValue("Resources on " + interest),
			"Category": notion.SelectValue("Other"),
			"UserId":   marker,
		})
		if err != nil {
			return seeded, err
		}
		seeded++
	}

	return seeded, nil
}

func commonSchema() map[string]interface{} {
	return map[string]interface{}{
		"Name": notion.TitleSpec(),
		"Status": notion.SelectSpec(
			notion.SelectOption{Name: "Not Started", Color: "gray"},
			notion.SelectOption{Name: "In Progress", Color: "blue"},
			notion.SelectOption{Name: "Completed", Color: "green"},
			notion.SelectOption{Name: "On Hold", Color: "orange"},
		),
		"Priority": notion.SelectSpec(
			notion.SelectOption{Name: "Low", Color: "gray"},
			notion.SelectOption{Name: "Medium", Color: "yellow"},
			notion.SelectOption{Name: "High", Color: "red"},
		),
		"Due Date": notion.DateSpec(),
		"Notes":    notion.RichTextSpec(),
		"UserId":   notion.RichTextSpec(),
	}
}

func projectsSchema() map[string]interface{} {
	schema := commonSchema()
	schema["End Date"] = notion.DateSpec()
	schema["Project Owner"] = notion.RichTextSpec()
	return schema
}

func areasSchema() map[string]interface{} {
	schema := commonSchema()
	schema["Responsibility"] = notion.RichTextSpec()
	return schema
}

func resourcesSchema() map[string]interface{} {
	schema := commonSchema()
	schema["Category"] = notion.SelectSpec(
		notion.SelectOption{Name: "Article", Color: "blue"},
		notion.SelectOption{Name: "Book", Color: "green"},
		notion.SelectOption{Name: "Course", Color: "orange"},
		notion.SelectOption{Name: "Video", Color: "red"},
		notion.SelectOption{Name: "Podcast", Color: "purple"},
		notion.SelectOption{Name: "Other", Color: "gray"},
	)
	schema["URL"] = notion.URLSpec()
	return schema
}

func archiveSchema() map[string]interface{} {
	schema := commonSchema()
	schema["Original Category"] = notion.SelectSpec(
		notion.SelectOption{Name: "Project", Color: "blue"},
		notion.SelectOption{Name: "Area", Color: "green"},
		notion.SelectOption{Name: "Resource", Color: "orange"},
	)
	schema["Archived Date"] = notion.DateSpec()
	return schema
}
