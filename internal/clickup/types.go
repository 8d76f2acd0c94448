package clickup

// =============================================================================
// CLICKUP API v2 TYPES
// =============================================================================
//
// Only the members the relay reads or writes are modelled. Custom field
// values are polymorphic: drop_down takes an option id, number and currency
// take a JSON number, date takes unix milliseconds, the rest take strings.
// =============================================================================

// List is the body of GET /list/{id}.
type List struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Statuses []Status `json:"statuses"`
}

// Status is one workflow column of a list.
type Status struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Type   string `json:"type,omitempty"`
}

// FieldsResponse is the body of GET /list/{id}/field.
type FieldsResponse struct {
	Fields []Field `json:"fields"`
}

// Field is a custom field definition accessible from a list.
type Field struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	TypeConfig FieldTypeConfig `json:"type_config"`
}

// FieldTypeConfig carries drop_down options; other types are ignored.
type FieldTypeConfig struct {
	Options []FieldOption `json:"options,omitempty"`
}

// FieldOption is one drop_down choice.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Field types with non-string values.
const (
	FieldDropDown = "drop_down"
	FieldNumber   = "number"
	FieldCurrency = "currency"
	FieldDate     = "date"
)

// CreateTaskRequest is the body of POST /list/{id}/task.
type CreateTaskRequest struct {
	Name                string             `json:"name"`
	MarkdownDescription string             `json:"markdown_description,omitempty"`
	Status              string             `json:"status,omitempty"`
	Priority            *int               `json:"priority,omitempty"`
	Tags                []string           `json:"tags,omitempty"`
	CustomFields        []CustomFieldValue `json:"custom_fields,omitempty"`
}

// CustomFieldValue sets one custom field on task creation.
type CustomFieldValue struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// Task is the subset of the created task the relay reports back.
type Task struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Status TaskStatus `json:"status"`
	URL    string     `json:"url"`
}

// TaskStatus is the status object embedded in a task.
type TaskStatus struct {
	Status string `json:"status"`
}

// ErrorResponse is ClickUp's error body, e.g. {"err":"Token invalid","ECODE":"OAUTH_025"}.
type ErrorResponse struct {
	Err   string `json:"err"`
	ECode string `json:"ECODE"`
}
