package notion

import "strings"

// RichTextItem is the wire shape Notion uses for any text run. Outbound we
// only fill Text; inbound PlainText is the rendered value.
type RichTextItem struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
}

func plainText(items []RichTextItem) string {
	var sb strings.Builder
	for _, item := range items {
		if item.PlainText != "" {
			sb.WriteString(item.PlainText)
			continue
		}
		if item.Text != nil {
			sb.WriteString(item.Text.Content)
		}
	}
	return sb.String()
}

// PropertySpec describes one column of a database schema. The writer branches
// on Type only; the option lists behind selects are not needed client-side.
type PropertySpec struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Database is a remote database object with its schema snapshot.
type Database struct {
	ID         string                  `json:"id"`
	Title      []RichTextItem          `json:"title"`
	Properties map[string]PropertySpec `json:"properties"`
}

// PlainTitle renders the database title as plain text.
func (d *Database) PlainTitle() string {
	if d == nil {
		return ""
	}
	return plainText(d.Title)
}

// SelectOptionValue is the inbound select payload on a page property.
type SelectOptionValue struct {
	Name string `json:"name"`
}

// DateValueBody is the inbound date payload on a page property.
type DateValueBody struct {
	Start string `json:"start"`
}

// PropertyValue is one property on a retrieved page. Only the kinds this
// system reads back are modeled.
type PropertyValue struct {
	Type     string             `json:"type"`
	Title    []RichTextItem     `json:"title,omitempty"`
	RichText []RichTextItem     `json:"rich_text,omitempty"`
	Select   *SelectOptionValue `json:"select,omitempty"`
	Date     *DateValueBody     `json:"date,omitempty"`
}

// PlainText renders whichever text payload the property carries.
func (p PropertyValue) PlainText() string {
	switch p.Type {
	case "title":
		return plainText(p.Title)
	case "rich_text":
		return plainText(p.RichText)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	case "date":
		if p.Date != nil {
			return p.Date.Start
		}
	}
	return ""
}

// Page is a remote row. Properties are keyed by column name.
type Page struct {
	ID         string                   `json:"id"`
	Properties map[string]PropertyValue `json:"properties"`
}

// PlainTitle returns the page's title property rendered as plain text.
// Column name varies per database, so this scans for the title-typed property.
func (p *Page) PlainTitle() string {
	if p == nil {
		return ""
	}
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return plainText(prop.Title)
		}
	}
	return ""
}

// SearchResult is one hit from the workspace search endpoint.
type SearchResult struct {
	Object string         `json:"object"`
	ID     string         `json:"id"`
	Title  []RichTextItem `json:"title"`
}

func (r SearchResult) PlainTitle() string {
	return plainText(r.Title)
}

// QueryResult is a page of rows from a database query.
type QueryResult struct {
	Results []Page `json:"results"`
	HasMore bool   `json:"has_more"`
}
