package record

import (
	"time"

	"github.com/kazz187/taskgantt/internal/gantt"
)

type FieldType string

const (
	Char      FieldType = "char"
	Text      FieldType = "text"
	Integer   FieldType = "integer"
	Float     FieldType = "float"
	Boolean   FieldType = "boolean"
	Selection FieldType = "selection"
	Date      FieldType = "date"
	Datetime  FieldType = "datetime"
	Many2one  FieldType = "many2one"
)

type Field struct {
	Type     FieldType `yaml:"type"`
	Relation string    `yaml:"relation,omitempty"`
	String   string    `yaml:"string,omitempty"`
}

// Model is the schema of one record collection.
type Model struct {
	Name    string           `yaml:"name"`
	RecName string           `yaml:"rec_name,omitempty"`
	Fields  map[string]Field `yaml:"fields"`
	Rights  gantt.Rights     `yaml:"rights"`
}

func (m *Model) recName() string {
	if m.RecName == "" {
		return "name"
	}
	return m.RecName
}

// DateTypes returns the date and datetime fields of the model, as a field
// mapping expects them.
func (m *Model) DateTypes() map[string]gantt.FieldType {
	types := map[string]gantt.FieldType{}
	for name, f := range m.Fields {
		switch f.Type {
		case Date:
			types[name] = gantt.FieldDate
		case Datetime:
			types[name] = gantt.FieldDatetime
		}
	}
	return types
}

// Entry is one stored record. Many2one values are kept as [id, name] pairs.
type Entry struct {
	ID        string         `yaml:"id"`
	Model     string         `yaml:"model"`
	Values    map[string]any `yaml:"values"`
	CreatedAt time.Time      `yaml:"created_at"`
	UpdatedAt time.Time      `yaml:"updated_at"`
}

// Record returns the entry as the host hands it to the mapper. When fields
// is empty every value is included.
func (e *Entry) Record(fields []string) gantt.Record {
	r := gantt.Record{"id": e.ID}
	if len(fields) == 0 {
		for k, v := range e.Values {
			r[k] = v
		}
		return r
	}
	for _, f := range fields {
		if f == "id" {
			continue
		}
		v, ok := e.Values[f]
		if !ok {
			v = false
		}
		r[f] = v
	}
	return r
}
