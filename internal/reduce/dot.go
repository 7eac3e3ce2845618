package reduce

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/alexeynavarkin/materialstore/internal/material"
)

const dotIndent = "  "

// Standalone wraps a list of Graphviz statements into a complete digraph.
func Standalone(body string) string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	for _, attr := range []string{
		`fontname="Helvetica,Arial,sans-serif"`,
		`node [fontname="Helvetica,Arial,sans-serif"]`,
		`edge [fontname="Helvetica,Arial,sans-serif"]`,
		`concentrate=true;`,
		`rankdir=TB;`,
		`node [shape=record];`,
	} {
		sb.WriteString(dotIndent + attr + "\n")
	}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		sb.WriteString(dotIndent + sc.Text() + "\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

var (
	dotQuoter    = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")
	recordQuoter = strings.NewReplacer(`"`, `\"`, "\n", `\n`, "\r", "")
)

// EscapeDot quotes s as a Graphviz string literal.
func EscapeDot(s string) string {
	return `"` + dotQuoter.Replace(s) + `"`
}

// quoteRecord quotes a label already escaped by recordLabel, keeping its
// backslash escapes such as \{ and \l.
func quoteRecord(s string) string {
	return `"` + recordQuoter.Replace(s) + `"`
}

// ToDot describes the pairing of g: one cluster per side, one record node
// per material and an edge per matched pair.
func ToDot(g *Group) string {
	var sb strings.Builder

	writeSide := func(side, label string, pick func(MaterialProduct) material.Material) {
		fmt.Fprintf(&sb, "subgraph cluster_%s {\n", side)
		fmt.Fprintf(&sb, "%slabel=%s;\n", dotIndent, EscapeDot(label))
		for i, p := range g.products {
			m := pick(p)
			if m.IsNull() {
				continue
			}
			fmt.Fprintf(&sb, "%s%s [label=%s];\n", dotIndent, nodeID(side, i), quoteRecord(recordLabel(m)))
		}
		sb.WriteString("}\n")
	}

	writeSide("left", g.labelLeft, func(p MaterialProduct) material.Material { return p.Left })
	writeSide("right", g.labelRight, func(p MaterialProduct) material.Material { return p.Right })

	for i, p := range g.products {
		if p.Left.IsNull() || p.Right.IsNull() {
			continue
		}
		label := ""
		if ratio, ok := p.DiffRatio(); ok {
			label = fmt.Sprintf("%.2f%%", ratio)
		}
		fmt.Fprintf(&sb, "%s -> %s [label=%s];\n", nodeID("left", i), nodeID("right", i), EscapeDot(label))
	}

	return Standalone(sb.String())
}

func nodeID(side string, i int) string {
	return fmt.Sprintf("%s%d", side, i+1)
}

var recordEscaper = strings.NewReplacer(
	`\`, `\\`, `{`, `\{`, `}`, `\}`, `|`, `\|`, `<`, `\<`, `>`, `\>`,
)

// recordLabel renders m as a three-field record; metadata pairs are left
// aligned lines.
func recordLabel(m material.Material) string {
	md := m.Metadata()
	var lines strings.Builder
	for _, k := range md.Keys() {
		v, _ := md.Get(k)
		lines.WriteString(recordEscaper.Replace(k + "=" + v))
		lines.WriteString(`\l`)
	}
	return fmt.Sprintf("{%s|%s|%s}", m.ID().Short(), m.FileType().Extension(), lines.String())
}
