package timeline

// Observer receives timeline notifications. Calls are synchronous and made
// at the point of the state change, one call per change.
type Observer interface {
	ItemAdded(item *Item)
	ItemDeleted(item *Item)
	ItemSelected(id ID, kind Kind)
	ItemMoved(id ID, start float64)
	ItemRetimed(id ID, start, duration float64)
	LayoutChanged()
}

// ObserverFuncs adapts optional functions to the Observer interface
type ObserverFuncs struct {
	OnItemAdded    func(item *Item)
	OnItemDeleted  func(item *Item)
	OnItemSelected func(id ID, kind Kind)
	OnItemMoved    func(id ID, start float64)
	OnItemRetimed  func(id ID, start, duration float64)
	OnLayout       func()
}

func (f ObserverFuncs) ItemAdded(item *Item) {
	if f.OnItemAdded != nil {
		f.OnItemAdded(item)
	}
}

func (f ObserverFuncs) ItemDeleted(item *Item) {
	if f.OnItemDeleted != nil {
		f.OnItemDeleted(item)
	}
}

func (f ObserverFuncs) ItemSelected(id ID, kind Kind) {
	if f.OnItemSelected != nil {
		f.OnItemSelected(id, kind)
	}
}

func (f ObserverFuncs) ItemMoved(id ID, start float64) {
	if f.OnItemMoved != nil {
		f.OnItemMoved(id, start)
	}
}

func (f ObserverFuncs) ItemRetimed(id ID, start, duration float64) {
	if f.OnItemRetimed != nil {
		f.OnItemRetimed(id, start, duration)
	}
}

func (f ObserverFuncs) LayoutChanged() {
	if f.OnLayout != nil {
		f.OnLayout()
	}
}

type subscription struct {
	id       int
	observer Observer
}

// Subscribe registers o and returns a function that removes it
func (t *Timeline) Subscribe(o Observer) func() {
	t.nextSub++
	id := t.nextSub
	t.observers = append(t.observers, subscription{id: id, observer: o})
	return func() {
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Timeline) notify(fn func(Observer)) {
	for _, s := range t.observers {
		fn(s.observer)
	}
}
