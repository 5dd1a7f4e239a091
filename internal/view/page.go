package view

import (
	"fmt"
	"slices"

	"github.com/openclimatefix/turbine-selector/internal/selection"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Member is a matched descriptor as shown inside its group.
type Member struct {
	turbine.Descriptor
	IsBest bool `json:"is_best"`
}

// Group holds the matched descriptors sharing a type.
type Group struct {
	Type    string   `json:"type"`
	Open    bool     `json:"open"`
	Count   int      `json:"count"`
	Members []Member `json:"members"`
}

// Detail explains why the selected descriptor matched the query.
type Detail struct {
	Turbine     turbine.Descriptor `json:"turbine"`
	IsBest      bool               `json:"is_best"`
	Containment []string           `json:"containment"`
}

// Page is the grouped results page.
type Page struct {
	Query  selection.Query `json:"query"`
	Total  int             `json:"total"`
	BestID *int32          `json:"best_id"`
	Groups []Group         `json:"groups"`
	Detail *Detail         `json:"detail,omitempty"`
	State  State           `json:"state"`
}

// Build groups res.Matched by type. Groups appear in order of their first
// member in store order; within a group the best descriptor comes first and
// the rest keep store order. A group is open when state lists it or when it
// holds the selected descriptor. The detail block is only set when the
// selected id is among the matched descriptors.
func Build(res selection.Result, state State) Page {
	if state.Open == nil {
		state.Open = []string{}
	}
	p := Page{
		Query:  res.Query,
		Total:  len(res.Matched),
		Groups: []Group{},
		State:  state,
	}
	if res.Best != nil {
		p.BestID = turbine.Ptr(res.Best.ID)
	}

	index := make(map[string]int)
	for _, d := range res.Matched {
		typ := d.TypeName()
		gi, ok := index[typ]
		if !ok {
			gi = len(p.Groups)
			index[typ] = gi
			p.Groups = append(p.Groups, Group{Type: typ, Open: state.IsOpen(typ), Members: []Member{}})
		}
		m := Member{Descriptor: d, IsBest: p.BestID != nil && d.ID == *p.BestID}
		g := &p.Groups[gi]
		if m.IsBest {
			g.Members = slices.Insert(g.Members, 0, m)
		} else {
			g.Members = append(g.Members, m)
		}
		g.Count++

		if state.Selected != nil && d.ID == *state.Selected {
			g.Open = true
			p.Detail = &Detail{
				Turbine:     d,
				IsBest:      m.IsBest,
				Containment: Containment(d, res.Query),
			}
		}
	}
	return p
}

// Containment describes where the query point sits relative to d's ranges.
func Containment(d turbine.Descriptor, q selection.Query) []string {
	return []string{
		axis("Q", q.Q, d.QMin, d.QMax),
		axis("H", q.H, d.HMin, d.HMax),
	}
}

func axis(name string, v, lo, hi float64) string {
	where := "within"
	switch {
	case v < lo:
		where = "below"
	case v > hi:
		where = "above"
	}
	return fmt.Sprintf("%s=%g %s [%g, %g]", name, v, where, lo, hi)
}
