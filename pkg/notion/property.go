package notion

import (
	"encoding/json"
)

// RichText is one text fragment. Only the plain text matters here.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// DateValue is the start of a Notion date. End dates and time zones are ignored.
type DateValue struct {
	Start string `json:"start"`
}

// tagged is the discriminator every Notion property payload carries.
type tagged struct {
	Type string `json:"type"`
}

// PropertyValue is one of TitleProperty, DateProperty, CheckboxProperty,
// RollupProperty or UnknownProperty.
type PropertyValue interface {
	isProperty()
}

type TitleProperty struct {
	Title []RichText
}

type DateProperty struct {
	Date *DateValue
}

type CheckboxProperty struct {
	Checkbox bool
}

type RollupProperty struct {
	Rollup RollupValue
}

// UnknownProperty stands in for any property type that is not decoded,
// and for known types whose body did not match the expected shape.
type UnknownProperty struct {
	Type string
}

func (TitleProperty) isProperty()    {}
func (DateProperty) isProperty()     {}
func (CheckboxProperty) isProperty() {}
func (RollupProperty) isProperty()   {}
func (UnknownProperty) isProperty()  {}

// DecodeProperty decodes a raw property payload. It never fails: anything it
// cannot make sense of becomes an UnknownProperty.
func DecodeProperty(raw json.RawMessage) PropertyValue {
	var tag tagged
	if err := json.Unmarshal(raw, &tag); err != nil {
		return UnknownProperty{}
	}

	switch tag.Type {
	case "title":
		var body struct {
			Title []RichText `json:"title"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownProperty{Type: tag.Type}
		}
		return TitleProperty{Title: body.Title}
	case "date":
		var body struct {
			Date *DateValue `json:"date"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownProperty{Type: tag.Type}
		}
		return DateProperty{Date: body.Date}
	case "checkbox":
		var body struct {
			Checkbox *bool `json:"checkbox"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || body.Checkbox == nil {
			return UnknownProperty{Type: tag.Type}
		}
		return CheckboxProperty{Checkbox: *body.Checkbox}
	case "rollup":
		var body struct {
			Rollup json.RawMessage `json:"rollup"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownProperty{Type: tag.Type}
		}
		return RollupProperty{Rollup: decodeRollup(body.Rollup)}
	}
	return UnknownProperty{Type: tag.Type}
}

// Properties is a page's property map, decoded leniently.
type Properties map[string]PropertyValue

// UnmarshalJSON decodes each property on its own so one odd property
// cannot spoil the rest of the page.
func (p *Properties) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		// Not an object at all; treat the page as having no properties.
		*p = Properties{}
		return nil
	}
	out := make(Properties, len(raw))
	for name, payload := range raw {
		out[name] = DecodeProperty(payload)
	}
	*p = out
	return nil
}

// Page is a row of a Notion database.
type Page struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
}

// QueryResponse is the body of a database query.
type QueryResponse struct {
	Results []Page `json:"results"`
}

// DatabaseObject is one database hit from the search endpoint.
type DatabaseObject struct {
	ID    string     `json:"id"`
	Title []RichText `json:"title"`
}

// SearchResponse is the body of a search request filtered to databases.
type SearchResponse struct {
	Results []DatabaseObject `json:"results"`
}
