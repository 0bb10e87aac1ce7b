package notion

// Value helpers build page property payloads keyed by discovered column type.

func TitleValue(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": []RichTextItem{{Text: &TextContent{Content: text}}},
	}
}

func RichTextValue(text string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []RichTextItem{{Text: &TextContent{Content: text}}},
	}
}

func SelectValue(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]string{"name": name},
	}
}

func MultiSelectValue(names []string) map[string]interface{} {
	options := make([]map[string]string, 0, len(names))
	for _, name := range names {
		options = append(options, map[string]string{"name": name})
	}
	return map[string]interface{}{"multi_select": options}
}

func DateValue(isoDate string) map[string]interface{} {
	return map[string]interface{}{
		"date": map[string]string{"start": isoDate},
	}
}

// Spec helpers build schema column specs for CreateDatabase.

// SelectOption is one choice in a select column spec.
type SelectOption struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func TitleSpec() map[string]interface{} {
	return map[string]interface{}{"title": map[string]interface{}{}}
}

func RichTextSpec() map[string]interface{} {
	return map[string]interface{}{"rich_text": map[string]interface{}{}}
}

func DateSpec() map[string]interface{} {
	return map[string]interface{}{"date": map[string]interface{}{}}
}

func URLSpec() map[string]interface{} {
	return map[string]interface{}{"url": map[string]interface{}{}}
}

func SelectSpec(options ...SelectOption) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"options": options},
	}
}
