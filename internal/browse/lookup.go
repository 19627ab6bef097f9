package browse

// Lookup holds the quick-lookup state: the typed autocomplete text, the
// suggestions applied for it and the selected entity overriding the result list.
type Lookup struct {
	input       string
	suggestions []Entity
	selection   *Entity
}

func (l *Lookup) Input() string {
	return l.input
}

func (l *Lookup) SetInput(text string) {
	l.input = text
}

// Suggestions returns a copy of the current suggestions.
func (l *Lookup) Suggestions() []Entity {
	return append([]Entity(nil), l.suggestions...)
}

func (l *Lookup) SetSuggestions(entities []Entity) {
	l.suggestions = Dedupe(entities)
}

func (l *Lookup) ClearSuggestions() {
	l.suggestions = nil
}

// Suggestion finds a suggestion by id.
func (l *Lookup) Suggestion(id int) (Entity, bool) {
	for _, e := range l.suggestions {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

func (l *Lookup) Select(e Entity) {
	l.selection = &e
}

// Clear removes the selection and reports whether one was set.
func (l *Lookup) Clear() bool {
	if l.selection == nil {
		return false
	}
	l.selection = nil
	return true
}

func (l *Lookup) Active() bool {
	return l.selection != nil
}

// Selected returns the selected entity, if any.
func (l *Lookup) Selected() (Entity, bool) {
	if l.selection == nil {
		return Entity{}, false
	}
	return *l.selection, true
}

// Result is the single-entity page shown while a selection is active.
func (l *Lookup) Result() ResultPage {
	e, _ := l.Selected()
	return ResultPage{Items: []Entity{e}, Page: 1, HasNextPage: false}
}
