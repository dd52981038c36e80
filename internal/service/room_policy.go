package service

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoomPolicyDocument is the on-disk form of the room policy.
//
//	restrictions:
//	  bateria: [Sala grande]
//	preferences:
//	  piano: [Sala piano, Sala grande]
type RoomPolicyDocument struct {
	Restrictions map[string][]string `yaml:"restrictions"`
	Preferences  map[string][]string `yaml:"preferences"`
}

// DefaultRoomPolicyDocument keeps percussion in the isolated room and sends
// piano students to the rooms with a piano first.
func DefaultRoomPolicyDocument() RoomPolicyDocument {
	return RoomPolicyDocument{
		Restrictions: map[string][]string{
			"bateria":   {"Sala grande"},
			"percusion": {"Sala grande"},
		},
		Preferences: map[string][]string{
			"piano": {"Sala piano", "Sala grande"},
		},
	}
}

// RoomPolicy is the single place where instrument to room rules live. It is
// read-only after construction.
type RoomPolicy struct {
	rooms        []string
	known        map[string]string
	restrictions map[string][]string
	preferences  map[string][]string
}

// NewRoomPolicy validates a policy document against the configured rooms.
// Room names in the document are matched case-insensitively.
func NewRoomPolicy(rooms []string, doc RoomPolicyDocument) (*RoomPolicy, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("room policy requires at least one room")
	}
	p := &RoomPolicy{
		rooms:        append([]string(nil), rooms...),
		known:        make(map[string]string, len(rooms)),
		restrictions: map[string][]string{},
		preferences:  map[string][]string{},
	}
	for _, room := range rooms {
		p.known[roomKey(room)] = room
	}

	var err error
	if p.restrictions, err = p.resolveTable("restriction", doc.Restrictions); err != nil {
		return nil, err
	}
	if p.preferences, err = p.resolveTable("preference", doc.Preferences); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultRoomPolicy applies the default document, silently skipping rules
// that mention rooms which are not configured.
func DefaultRoomPolicy(rooms []string) (*RoomPolicy, error) {
	doc := DefaultRoomPolicyDocument()
	known := map[string]struct{}{}
	for _, room := range rooms {
		known[roomKey(room)] = struct{}{}
	}
	prune := func(table map[string][]string) map[string][]string {
		out := map[string][]string{}
		for instrument, list := range table {
			var kept []string
			for _, room := range list {
				if _, ok := known[roomKey(room)]; ok {
					kept = append(kept, room)
				}
			}
			if len(kept) > 0 {
				out[instrument] = kept
			}
		}
		return out
	}
	doc.Restrictions = prune(doc.Restrictions)
	doc.Preferences = prune(doc.Preferences)

	return NewRoomPolicy(rooms, doc)
}

// LoadRoomPolicy reads a YAML policy file; an empty path yields the default policy.
func LoadRoomPolicy(path string, rooms []string) (*RoomPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRoomPolicy(rooms)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room policy %s: %w", path, err)
	}
	var doc RoomPolicyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse room policy %s: %w", path, err)
	}
	return NewRoomPolicy(rooms, doc)
}

// Rooms returns every room in canonical order.
func (p *RoomPolicy) Rooms() []string {
	return append([]string(nil), p.rooms...)
}

// IsKnown reports whether the label names a configured room.
func (p *RoomPolicy) IsKnown(room string) bool {
	_, ok := p.known[roomKey(room)]
	return ok
}

// Canonical returns the configured spelling of a room label.
func (p *RoomPolicy) Canonical(room string) (string, bool) {
	name, ok := p.known[roomKey(room)]
	return name, ok
}

// AllowedRooms lists the rooms an instrument may use in canonical order. An
// empty or unrestricted instrument gets every room.
func (p *RoomPolicy) AllowedRooms(instrument string) []string {
	if restricted, ok := p.restrictions[foldText(instrument)]; ok {
		return p.inCanonicalOrder(restricted)
	}
	return p.Rooms()
}

// PreferredRooms returns the preference list for an instrument, best first.
func (p *RoomPolicy) PreferredRooms(instrument string) []string {
	return append([]string(nil), p.preferences[foldText(instrument)]...)
}

// ResolveRooms maps requested labels onto configured rooms, keeping request
// order and dropping unknown or repeated labels.
func (p *RoomPolicy) ResolveRooms(requested []string) (rooms []string, dropped []string) {
	seen := map[string]struct{}{}
	for _, raw := range requested {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		name, ok := p.Canonical(label)
		if !ok {
			dropped = append(dropped, label)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rooms = append(rooms, name)
	}
	return rooms, dropped
}

// OrderByPreference stably moves preferred rooms to the front; rooms absent
// from the preference list keep their relative order at the back.
func (p *RoomPolicy) OrderByPreference(rooms []string, instrument string) []string {
	preferred := p.PreferredRooms(instrument)
	if len(preferred) == 0 {
		return rooms
	}
	rank := make(map[string]int, len(preferred))
	for i, room := range preferred {
		rank[room] = i
	}
	ordered := append([]string(nil), rooms...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rankOf(rank, ordered[i]) < rankOf(rank, ordered[j])
	})
	return ordered
}

func (p *RoomPolicy) resolveTable(kind string, table map[string][]string) (map[string][]string, error) {
	out := make(map[string][]string, len(table))
	for instrument, rooms := range table {
		key := foldText(instrument)
		if key == "" {
			return nil, fmt.Errorf("room %s with empty instrument", kind)
		}
		resolved := make([]string, 0, len(rooms))
		for _, room := range rooms {
			name, ok := p.Canonical(room)
			if !ok {
				return nil, fmt.Errorf("room %s for %s references unknown room %q", kind, instrument, room)
			}
			resolved = append(resolved, name)
		}
		if len(resolved) == 0 {
			return nil, fmt.Errorf("room %s for %s lists no rooms", kind, instrument)
		}
		out[key] = resolved
	}
	return out, nil
}

func (p *RoomPolicy) inCanonicalOrder(subset []string) []string {
	want := make(map[string]struct{}, len(subset))
	for _, room := range subset {
		want[room] = struct{}{}
	}
	out := make([]string, 0, len(subset))
	for _, room := range p.rooms {
		if _, ok := want[room]; ok {
			out = append(out, room)
		}
	}
	return out
}

func rankOf(rank map[string]int, room string) int {
	if r, ok := rank[room]; ok {
		return r
	}
	return len(rank)
}

func roomKey(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}
