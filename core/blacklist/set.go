package blacklist

import (
	"encoding/json"
	"sort"

	mapset "github.com/deckarep/golang-set"
)

// Entry is one raw blacklist item as served by the local file or the
// remote API.
type Entry struct {
	Hotkey string `json:"hotkey"`
	Reason string `json:"reason"`
}

// Set is a deduplicated collection of banned hotkeys. A nil Set behaves
// as an empty one.
type Set struct {
	hotkeys mapset.Set
}

func NewSet(hotkeys ...string) *Set {
	s := &Set{hotkeys: mapset.NewSet()}
	for _, hotkey := range hotkeys {
		s.hotkeys.Add(hotkey)
	}
	return s
}

// FromEntries builds a set from raw entries, dropping entries without a
// hotkey.
func FromEntries(entries []Entry) *Set {
	s := NewSet()
	for _, entry := range entries {
		if entry.Hotkey != "" {
			s.hotkeys.Add(entry.Hotkey)
		}
	}
	return s
}

func (s *Set) Add(hotkey string) {
	s.hotkeys.Add(hotkey)
}

func (s *Set) Contains(hotkey string) bool {
	if s == nil {
		return false
	}
	return s.hotkeys.Contains(hotkey)
}

func (s *Set) Union(other *Set) *Set {
	if s == nil {
		return other
	}
	if other == nil {
		return s
	}
	return &Set{hotkeys: s.hotkeys.Union(other.hotkeys)}
}

func (s *Set) Cardinality() int {
	if s == nil {
		return 0
	}
	return s.hotkeys.Cardinality()
}

// Hotkeys returns the members in a stable order.
func (s *Set) Hotkeys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, s.hotkeys.Cardinality())
	for _, item := range s.hotkeys.ToSlice() {
		keys = append(keys, item.(string))
	}
	sort.Strings(keys)
	return keys
}

func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Hotkeys())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	s.hotkeys = mapset.NewSet()
	for _, hotkey := range keys {
		s.hotkeys.Add(hotkey)
	}
	return nil
}

// ValidEntries checks the schema of a raw blacklist: a non-empty list
// where every item carries a hotkey.
func ValidEntries(entries []Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, entry := range entries {
		if entry.Hotkey == "" {
			return false
		}
	}
	return true
}
