package pusher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/paraflow/paraflow/pkg/notion"
	"github.com/paraflow/paraflow/pkg/para"
	"github.com/paraflow/paraflow/pkg/settings"
)

// Store is the remote structured store surface the writer and provisioner
// need. *notion.Client satisfies it.
type Store interface {
	Search(ctx context.Context, query, objectType string) ([]notion.SearchResult, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error)
	CreateDatabase(ctx context.Context, parentPageID, title string, properties map[string]interface{}) (*notion.Database, error)
	CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}) (*notion.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, pageSize int) (*notion.QueryResult, error)
}

// RemoteWriteError wraps a per-element remote failure with the element's
// title so callers can report which record did not land.
type RemoteWriteError struct {
	Title string
	Err   error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("push %q: %v", e.Title, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// Writer projects confirmed elements into the remote store, adapting each
// write to the database's current schema.
type Writer struct {
	store  Store
	logger *zap.Logger
}

func NewWriter(store Store, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger}
}

// PushElement writes one element into the database bound to its category.
// Empty-title elements are a silent no-op. The destination schema is fetched
// fresh on every call so user edits to the database are honored immediately;
// a failed fetch degrades to a title-only write rather than failing.
func (w *Writer) PushElement(ctx context.Context, el para.Element, binding settings.Binding) (*notion.Page, error) {
	title := strings.TrimSpace(el.Title)
	if title == "" {
		return nil, nil
	}

	databaseID := binding.DatabaseFor(string(el.Type))
	if databaseID == "" {
		return nil, &RemoteWriteError{Title: title, Err: fmt.Errorf("no database bound for category %q", el.Type)}
	}

	schema := w.snapshotSchema(ctx, databaseID)
	properties := buildElementProperties(el, title, schema)

	page, err := w.store.CreatePage(ctx, databaseID, properties)
	if err != nil {
		return nil, &RemoteWriteError{Title: title, Err: err}
	}

	w.logger.Info("element pushed",
		zap.String("title", title),
		zap.String("category", string(el.Type)),
		zap.String("database_id", databaseID))
	return page, nil
}

// PushBatch writes elements sequentially, collecting per-element errors.
// One failure never aborts the siblings.
func (w *Writer) PushBatch(ctx context.Context, els []para.Element, binding settings.Binding) ([]*notion.Page, []error) {
	var pages []*notion.Page
	var errs []error
	for _, el := range els {
		page, err := w.PushElement(ctx, el, binding)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if page != nil {
			pages = append(pages, page)
		}
	}
	return pages, errs
}

// PushTasks writes flat tasks into databaseID with the same adaptive
// treatment. The schema is fetched once per call, tasks within one push see
// the same snapshot.
func (w *Writer) PushTasks(ctx context.Context, tasks []para.Task, databaseID string) ([]*notion.Page, []error) {
	databaseID = strings.TrimSpace(databaseID)
	if databaseID == "" {
		return nil, []error{fmt.Errorf("no task database bound")}
	}

	schema := w.snapshotSchema(ctx, databaseID)

	var pages []*notion.Page
	var errs []error
	for _, task := range tasks {
		title := strings.TrimSpace(task.Title)
		if title == "" {
			continue
		}

		properties := map[string]interface{}{
			"Name": notion.TitleValue(title),
		}
		if task.DueDate != "" {
			if spec, ok := schema["Due Date"]; ok {
				if spec.Type == "date" {
					properties["Due Date"] = notion.DateValue(task.DueDate)
				} else {
					properties["Due Date"] = notion.RichTextValue(task.DueDate)
				}
			}
		}
		if task.Priority != "" {
			if spec, ok := schema["Priority"]; ok {
				if spec.Type == "select" {
					properties["Priority"] = notion.SelectValue(task.Priority)
				} else {
					properties["Priority"] = notion.RichTextValue(task.Priority)
				}
			}
		}
		if task.Category != "" {
			if spec, ok := schema["Category"]; ok {
				if spec.Type == "select" {
					properties["Category"] = notion.SelectValue(task.Category)
				} else {
					properties["Category"] = notion.RichTextValue(task.Category)
				}
			}
		}

		page, err := w.store.CreatePage(ctx, databaseID, properties)
		if err != nil {
			errs = append(errs, &RemoteWriteError{Title: title, Err: err})
			continue
		}
		pages = append(pages, page)
	}
	return pages, errs
}

// snapshotSchema fetches the database's current columns. Discovery failure is
// absorbed: a bare title-only schema keeps the write path alive.
func (w *Writer) snapshotSchema(ctx context.Context, databaseID string) map[string]notion.PropertySpec {
	db, err := w.store.RetrieveDatabase(ctx, databaseID)
	if err != nil {
		w.logger.Warn("schema discovery failed, using bare schema",
			zap.String("database_id", databaseID),
			zap.Error(err))
		return map[string]notion.PropertySpec{}
	}
	if db.Properties == nil {
		return map[string]notion.PropertySpec{}
	}
	return db.Properties
}

func buildElementProperties(el para.Element, title string, schema map[string]notion.PropertySpec) map[string]interface{} {
	properties := map[string]interface{}{
		"Name": notion.TitleValue(title),
	}

	if el.Type != "" {
		if spec, ok := schema["Type"]; ok {
			value := strings.ToUpper(string(el.Type))
			if spec.Type == "select" {
				properties["Type"] = notion.SelectValue(value)
			} else {
				properties["Type"] = notion.RichTextValue(value)
			}
		}
	}

	description := strings.TrimSpace(el.Description)
	if description != "" {
		if _, ok := schema["Description"]; ok {
			properties["Description"] = notion.RichTextValue(description)
		} else {
			// No dedicated field: fold into the title so the text is not
			// silently dropped.
			properties["Name"] = notion.TitleValue(title + " - " + description)
		}
	}

	if el.DueDate != "" {
		if spec, ok := schema["Due Date"]; ok {
			if spec.Type == "date" {
				properties["Due Date"] = notion.DateValue(el.DueDate)
			} else {
				properties["Due Date"] = notion.RichTextValue(el.DueDate)
			}
		}
	}

	if el.Priority != "" {
		if spec, ok := schema["Priority"]; ok {
			if spec.Type == "select" {
				properties["Priority"] = notion.SelectValue(el.Priority)
			} else {
				properties["Priority"] = notion.RichTextValue(el.Priority)
			}
		}
	}

	if len(el.Tags) > 0 {
		if spec, ok := schema["Tags"]; ok {
			if spec.Type == "multi_select" {
				properties["Tags"] = notion.MultiSelectValue(el.Tags)
			} else {
				properties["Tags"] = notion.RichTextValue(strings.Join(el.Tags, ", "))
			}
		}
	}

	if el.Context != "" {
		if _, ok := schema["Context"]; ok {
			properties["Context"] = notion.RichTextValue(el.Context)
		}
	}

	return properties
}
