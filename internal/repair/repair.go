package repair

import (
	"regexp"
	"strings"
)

var (
	tagRe     = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9\-]*)((?:"[^"]*"|'[^']*'|[^'">])*)>`)
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// voidElements never take a closing tag.
var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "source": {}, "track": {}, "wbr": {},
}

// tag is one markup tag found in the source.
type tag struct {
	start, end  int
	name        string
	attrs       string
	closing     bool
	selfClosing bool
}

// FixVueCode self-closes opening tags that are never closed.
// Well-formed markup is returned unchanged. Script, style and comment blocks are left alone.
func FixVueCode(code string) string {
	tags := scanTags(code)
	unclosed := unclosedTags(tags)
	if len(unclosed) == 0 {
		return code
	}

	var b strings.Builder
	b.Grow(len(code) + 2*len(unclosed))
	last := 0
	for i, tg := range tags {
		if _, ok := unclosed[i]; !ok {
			continue
		}
		b.WriteString(code[last:tg.start])
		b.WriteString("<" + tg.name + strings.TrimRight(tg.attrs, " \t\r\n") + " />")
		last = tg.end
	}
	b.WriteString(code[last:])
	return b.String()
}

// scanTags returns all tags outside raw-text blocks in source order.
func scanTags(code string) []tag {
	var skip [][]int
	skip = append(skip, scriptRe.FindAllStringIndex(code, -1)...)
	skip = append(skip, styleRe.FindAllStringIndex(code, -1)...)
	skip = append(skip, commentRe.FindAllStringIndex(code, -1)...)

	inSkipped := func(pos int) bool {
		for _, r := range skip {
			if pos >= r[0] && pos < r[1] {
				return true
			}
		}
		return false
	}

	var tags []tag
	for _, m := range tagRe.FindAllStringSubmatchIndex(code, -1) {
		if inSkipped(m[0]) {
			continue
		}
		attrs := code[m[6]:m[7]]
		tags = append(tags, tag{
			start:       m[0],
			end:         m[1],
			name:        code[m[4]:m[5]],
			attrs:       attrs,
			closing:     m[3] > m[2],
			selfClosing: strings.HasSuffix(strings.TrimSpace(attrs), "/"),
		})
	}
	return tags
}

// unclosedTags returns the indexes of opening tags without a matching closing tag.
func unclosedTags(tags []tag) map[int]struct{} {
	unclosed := map[int]struct{}{}
	var stack []int

	for i, tg := range tags {
		if tg.selfClosing {
			continue
		}
		if _, void := voidElements[strings.ToLower(tg.name)]; void {
			continue
		}
		if !tg.closing {
			stack = append(stack, i)
			continue
		}

		j := len(stack) - 1
		for j >= 0 && tags[stack[j]].name != tg.name {
			j--
		}
		if j < 0 {
			continue // stray closing tag
		}
		for _, k := range stack[j+1:] {
			unclosed[k] = struct{}{}
		}
		stack = stack[:j]
	}
	for _, k := range stack {
		unclosed[k] = struct{}{}
	}
	return unclosed
}
