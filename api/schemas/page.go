// api/schemas/page.go
package schemas

// PageSnapshot is a structured extraction of the page state as a human
// tester would perceive it. Only visibly rendered elements are included.
type PageSnapshot struct {
	VisibleText string      `json:"visible_text"`
	FormFields  []FormField `json:"form_fields,omitempty"`
	Dropdowns   []Dropdown  `json:"dropdowns,omitempty"`
	Labels      []string    `json:"labels,omitempty"`
	Buttons     []string    `json:"buttons,omitempty"`
}

// FormField describes one visible input or textarea and its current value.
type FormField struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Value       string `json:"value"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
}

// Dropdown describes one visible select element with its full option list.
type Dropdown struct {
	Name          string           `json:"name"`
	ID            string           `json:"id"`
	Label         string           `json:"label"`
	SelectedValue string           `json:"selected_value"`
	SelectedText  string           `json:"selected_text"`
	Options       []DropdownOption `json:"options"`
}

// DropdownOption is one entry of a select element.
type DropdownOption struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// ConsoleLog is one console message or page error captured by the session's
// event listeners. The buffer is append-only; readers get a copy.
type ConsoleLog struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"` // "console" or "error"
	Level     string `json:"level,omitempty"`
	Text      string `json:"text"`
}
