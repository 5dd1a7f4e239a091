// Package view shapes a selection result for display: matched turbines
// grouped by type, best first, with request-scoped view state.
package view

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// State is the view state of one results page. It arrives with the request
// and is echoed back; nothing is kept between requests.
type State struct {
	// Open lists the type groups shown expanded, sorted and deduplicated.
	Open []string `json:"open"`
	// Selected is the descriptor whose detail block is shown, if any.
	Selected *int32 `json:"selected"`
}

// ParseState reads the repeatable "open" parameter and the optional
// "selected" id from values.
func ParseState(values url.Values) (State, error) {
	s := State{Open: []string{}}
	for _, o := range values["open"] {
		if o = strings.TrimSpace(o); o != "" {
			s.Open = append(s.Open, o)
		}
	}
	slices.Sort(s.Open)
	s.Open = slices.Compact(s.Open)

	if raw := strings.TrimSpace(values.Get("selected")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return State{}, turbine.Errorf(turbine.CodeInvalidQuery, "selected must be a turbine id, got %q", raw)
		}
		s.Selected = turbine.Ptr(int32(id))
	}
	return s, nil
}

// IsOpen reports whether the group for typ is expanded.
func (s State) IsOpen(typ string) bool {
	_, found := slices.BinarySearch(s.Open, typ)
	return found
}

// Toggle returns a copy of s with typ's group flipped between open and closed.
func (s State) Toggle(typ string) State {
	open := slices.Clone(s.Open)
	if i, found := slices.BinarySearch(open, typ); found {
		open = slices.Delete(open, i, i+1)
	} else {
		open = slices.Insert(open, i, typ)
	}
	if open == nil {
		open = []string{}
	}
	return State{Open: open, Selected: s.Selected}
}

// Select returns a copy of s with id selected.
func (s State) Select(id int32) State {
	return State{Open: slices.Clone(s.Open), Selected: turbine.Ptr(id)}
}

// Values encodes s back into query parameters.
func (s State) Values() url.Values {
	v := url.Values{}
	for _, o := range s.Open {
		v.Add("open", o)
	}
	if s.Selected != nil {
		v.Set("selected", strconv.FormatInt(int64(*s.Selected), 10))
	}
	return v
}
