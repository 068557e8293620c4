package paper

import "rakugaki/internal/ids"

// Library holds the named papers a project may reference.
type Library struct {
	papers map[string]*Paper
	order  []string
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{papers: make(map[string]*Paper)}
}

// DefaultLibrary returns the stock papers: smooth grain, rough grain and
// canvas weave.
func DefaultLibrary(gen ids.Generator) *Library {
	l := NewLibrary()
	l.Add(New(gen.Next(), "grain", Grain{Scale: 3, Seed: 1}))
	l.Add(New(gen.Next(), "rough", Grain{Scale: 8, Seed: 7}))
	l.Add(New(gen.Next(), "canvas", Weave{Pitch: 6}))
	return l
}

// Add registers p, replacing any paper with the same name.
func (l *Library) Add(p *Paper) {
	if _, ok := l.papers[p.Name]; !ok {
		l.order = append(l.order, p.Name)
	}
	l.papers[p.Name] = p
}

func (l *Library) Get(name string) (*Paper, bool) {
	p, ok := l.papers[name]
	return p, ok
}

// Names lists papers in registration order.
func (l *Library) Names() []string {
	return append([]string(nil), l.order...)
}
