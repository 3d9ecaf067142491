package client

// URLSet holds the URLs a chain resolved, in the order they were added. The
// most recently added URL is the authoritative one.
type URLSet struct {
	urls []string
}

// Add appends url and makes it authoritative.
func (s *URLSet) Add(url string) {
	s.urls = append(s.urls, url)
}

// Last returns the authoritative URL, or "" when nothing was resolved.
func (s *URLSet) Last() string {
	if len(s.urls) == 0 {
		return ""
	}

	return s.urls[len(s.urls)-1]
}

// All returns a copy of every resolved URL in insertion order.
func (s *URLSet) All() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)

	return out
}

// Len returns the number of resolved URLs.
func (s *URLSet) Len() int {
	return len(s.urls)
}
