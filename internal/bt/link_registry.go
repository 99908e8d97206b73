package bt

import (
	"slices"
	"strings"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/safe_map"
)

// trackedLink is the part of a link the registry drives.
type trackedLink interface {
	markLost()
	Close() error
}

// linkRegistry routes adapter disconnect events to open links. One device
// may be bound to several roles at once (a trainer that also serves power
// and heart rate), so each address holds every link opened to it.
type linkRegistry struct {
	links *safe_map.SafeMap[string, []trackedLink]
}

func newLinkRegistry() *linkRegistry {
	return &linkRegistry{links: safe_map.NewSafeMap[string, []trackedLink]()}
}

func (r *linkRegistry) add(address string, l trackedLink) {
	r.links.Update(strings.ToUpper(address), func(links []trackedLink, _ bool) ([]trackedLink, bool) {
		return append(links, l), true
	})
}

func (r *linkRegistry) remove(address string, l trackedLink) {
	r.links.Update(strings.ToUpper(address), func(links []trackedLink, ok bool) ([]trackedLink, bool) {
		if !ok {
			return nil, false
		}
		links = slices.DeleteFunc(slices.Clone(links), func(other trackedLink) bool { return other == l })
		return links, len(links) > 0
	})
}

// markLost signals every link open to address and forgets them. Returns
// how many were signalled.
func (r *linkRegistry) markLost(address string) int {
	links, _ := r.links.LoadAndDelete(strings.ToUpper(address))
	for _, l := range links {
		l.markLost()
	}
	return len(links)
}

// each calls fn for every registered link.
func (r *linkRegistry) each(fn func(address string, l trackedLink)) {
	r.links.Range(func(address string, links []trackedLink) bool {
		for _, l := range links {
			fn(address, l)
		}
		return true
	})
}
