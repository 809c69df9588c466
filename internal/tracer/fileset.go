package tracer

// fileSet is an insertion-ordered set of paths.
type fileSet struct {
	order []string
	index map[string]struct{}
}

func newFileSet(paths ...[]string) *fileSet {
	s := &fileSet{index: map[string]struct{}{}}
	for _, p := range paths {
		s.add(p...)
	}
	return s
}

func (s *fileSet) add(paths ...string) {
	for _, p := range paths {
		if _, ok := s.index[p]; ok {
			continue
		}
		s.index[p] = struct{}{}
		s.order = append(s.order, p)
	}
}

func (s *fileSet) has(p string) bool {
	_, ok := s.index[p]
	return ok
}

func (s *fileSet) len() int { return len(s.order) }

func (s *fileSet) list() []string { return append([]string(nil), s.order...) }

// minus returns the members of s not in other, in order.
func (s *fileSet) minus(other *fileSet) []string {
	var out []string
	for _, p := range s.order {
		if !other.has(p) {
			out = append(out, p)
		}
	}
	return out
}
