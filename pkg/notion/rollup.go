package notion

import "encoding/json"

// RollupValue is one of ArrayRollup, DateRollup or UnknownRollup.
type RollupValue interface {
	isRollup()
}

type ArrayRollup struct {
	Array []RollupItem
}

type DateRollup struct {
	Date *DateValue
}

type UnknownRollup struct {
	Type string
}

func (ArrayRollup) isRollup()   {}
func (DateRollup) isRollup()    {}
func (UnknownRollup) isRollup() {}

// RollupItem is one element of an array rollup: TitleItem, DateItem,
// FormulaItem or UnknownItem.
type RollupItem interface {
	isRollupItem()
}

type TitleItem struct {
	Title []RichText
}

type DateItem struct {
	Date *DateValue
}

type FormulaItem struct {
	Formula FormulaValue
}

type UnknownItem struct {
	Type string
}

func (TitleItem) isRollupItem()   {}
func (DateItem) isRollupItem()    {}
func (FormulaItem) isRollupItem() {}
func (UnknownItem) isRollupItem() {}

// FormulaValue is either DateFormula or UnknownFormula.
type FormulaValue interface {
	isFormula()
}

type DateFormula struct {
	Date *DateValue
}

type UnknownFormula struct {
	Type string
}

func (DateFormula) isFormula()    {}
func (UnknownFormula) isFormula() {}

func decodeRollup(raw json.RawMessage) RollupValue {
	var tag tagged
	if len(raw) == 0 || json.Unmarshal(raw, &tag) != nil {
		return UnknownRollup{}
	}

	switch tag.Type {
	case "array":
		var body struct {
			Array []json.RawMessage `json:"array"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownRollup{Type: tag.Type}
		}
		items := make([]RollupItem, 0, len(body.Array))
		for _, item := range body.Array {
			items = append(items, decodeRollupItem(item))
		}
		return ArrayRollup{Array: items}
	case "date":
		var body struct {
			Date *DateValue `json:"date"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownRollup{Type: tag.Type}
		}
		return DateRollup{Date: body.Date}
	}
	return UnknownRollup{Type: tag.Type}
}

func decodeRollupItem(raw json.RawMessage) RollupItem {
	var tag tagged
	if json.Unmarshal(raw, &tag) != nil {
		return UnknownItem{}
	}

	switch tag.Type {
	case "title":
		var body struct {
			Title []RichText `json:"title"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownItem{Type: tag.Type}
		}
		return TitleItem{Title: body.Title}
	case "date":
		var body struct {
			Date *DateValue `json:"date"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownItem{Type: tag.Type}
		}
		return DateItem{Date: body.Date}
	case "formula":
		var body struct {
			Formula json.RawMessage `json:"formula"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return UnknownItem{Type: tag.Type}
		}
		return FormulaItem{Formula: decodeFormula(body.Formula)}
	}
	return UnknownItem{Type: tag.Type}
}

func decodeFormula(raw json.RawMessage) FormulaValue {
	var tag tagged
	if len(raw) == 0 || json.Unmarshal(raw, &tag) != nil {
		return UnknownFormula{}
	}
	if tag.Type != "date" {
		return UnknownFormula{Type: tag.Type}
	}
	var body struct {
		Date *DateValue `json:"date"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return UnknownFormula{Type: tag.Type}
	}
	return DateFormula{Date: body.Date}
}

// startOf returns the start of a date value if one is present.
func startOf(d *DateValue) (string, bool) {
	if d == nil {
		return "", false
	}
	return d.Start, true
}

// firstText returns the first fragment's text if the sequence is non-empty.
func firstText(rt []RichText) (string, bool) {
	if len(rt) == 0 {
		return "", false
	}
	return rt[0].PlainText, true
}

// ItemTitle returns the title text of a rollup item.
func ItemTitle(item RollupItem) (string, bool) {
	if t, ok := item.(TitleItem); ok {
		return firstText(t.Title)
	}
	return "", false
}

// FormulaDate returns the date a formula evaluated to.
func FormulaDate(f FormulaValue) (string, bool) {
	if d, ok := f.(DateFormula); ok {
		return startOf(d.Date)
	}
	return "", false
}

// ItemDate returns the date carried by a rollup item, either directly or
// through a date formula.
func ItemDate(item RollupItem) (string, bool) {
	switch v := item.(type) {
	case DateItem:
		return startOf(v.Date)
	case FormulaItem:
		return FormulaDate(v.Formula)
	}
	return "", false
}

// RollupTitle scans an array rollup and returns the first usable title.
func RollupTitle(r RollupValue) (string, bool) {
	arr, ok := r.(ArrayRollup)
	if !ok {
		return "", false
	}
	for _, item := range arr.Array {
		if s, ok := ItemTitle(item); ok {
			return s, true
		}
	}
	return "", false
}

// RollupDate returns the first usable date of a rollup. Array rollups are
// scanned in order; a scalar date rollup is used as is.
func RollupDate(r RollupValue) (string, bool) {
	switch v := r.(type) {
	case ArrayRollup:
		for _, item := range v.Array {
			if s, ok := ItemDate(item); ok {
				return s, true
			}
		}
	case DateRollup:
		return startOf(v.Date)
	}
	return "", false
}
