package extract

import "regexp"

// workspace is the lower-cased input with consumed phrases blanked out, so
// each number or word is attributed to at most one field. Byte offsets stay
// aligned with the raw input.
type workspace struct {
	raw  string
	work []byte
}

func newWorkspace(raw string) *workspace {
	work := []byte(raw)
	for i, b := range work {
		if b >= 'A' && b <= 'Z' {
			work[i] = b + ('a' - 'A')
		}
	}
	return &workspace{raw: raw, work: work}
}

func (w *workspace) String() string { return string(w.work) }

// match is a regexp hit on the workspace at the time it was found.
type match struct {
	w   *workspace
	loc []int
	txt string
}

func (m *match) group(i int) string {
	if 2*i+1 >= len(m.loc) || m.loc[2*i] < 0 {
		return ""
	}
	return m.txt[m.loc[2*i]:m.loc[2*i+1]]
}

func (m *match) span() span { return span{m.loc[0], m.loc[1]} }

func (m *match) consume() { m.w.blank(m.loc[0], m.loc[1]) }

func (w *workspace) blank(start, end int) {
	for i := start; i < end; i++ {
		w.work[i] = ' '
	}
}

func (w *workspace) find(re *regexp.Regexp) *match {
	txt := w.String()
	loc := re.FindStringSubmatchIndex(txt)
	if loc == nil {
		return nil
	}
	return &match{w: w, loc: loc, txt: txt}
}

func (w *workspace) findAll(re *regexp.Regexp) []*match {
	txt := w.String()
	locs := re.FindAllStringSubmatchIndex(txt, -1)
	out := make([]*match, 0, len(locs))
	for _, loc := range locs {
		out = append(out, &match{w: w, loc: loc, txt: txt})
	}
	return out
}
