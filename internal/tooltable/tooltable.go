// Package tooltable loads XML tool library files and resolves tool numbers
// referenced by T words. The layout follows CAM tool library exports: a
// tooltable root holding tool elements with number and name attributes and
// optional geometry child elements.
//
//	<tooltable>
//	  <tool number="2" name="6mm endmill">
//	    <diameter>6</diameter>
//	    <length>42.5</length>
//	    <flutes>4</flutes>
//	  </tool>
//	</tooltable>
package tooltable

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Tool is one entry of a tool library.
type Tool struct {
	Number   int     `json:"number"`
	Name     string  `json:"name,omitempty"`
	Diameter float64 `json:"diameter,omitempty"`
	Length   float64 `json:"length,omitempty"`
	Flutes   int     `json:"flutes,omitempty"`
}

// String renders the tool for annotations: the name when present, otherwise
// a generic label with the diameter.
func (t Tool) String() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Diameter > 0 {
		return fmt.Sprintf("tool %d d=%s", t.Number, strconv.FormatFloat(t.Diameter, 'f', -1, 64))
	}
	return fmt.Sprintf("tool %d", t.Number)
}

// Table is a parsed tool library.
type Table struct {
	tools map[int]Tool
	order []int
}

var toolExpr = xpath.MustCompile("//tooltable/tool")

// Parse parses an XML tool library.
func Parse(data []byte) (*Table, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing tool table: %w", err)
	}

	nodes := xmlquery.QuerySelectorAll(doc, toolExpr)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("parsing tool table: no tooltable/tool elements")
	}

	table := &Table{tools: make(map[int]Tool, len(nodes))}
	for _, node := range nodes {
		tool, err := parseTool(node)
		if err != nil {
			return nil, fmt.Errorf("parsing tool table: %w", err)
		}
		if _, ok := table.tools[tool.Number]; ok {
			return nil, fmt.Errorf("parsing tool table: tool %d defined twice", tool.Number)
		}
		table.tools[tool.Number] = tool
		table.order = append(table.order, tool.Number)
	}
	return table, nil
}

// Load reads and parses a tool library file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tool table: %w", err)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading tool table %s: %w", path, err)
	}
	return table, nil
}

// Lookup resolves a tool number.
func (t *Table) Lookup(number int) (Tool, bool) {
	tool, ok := t.tools[number]
	return tool, ok
}

// Tools returns every tool in document order.
func (t *Table) Tools() []Tool {
	out := make([]Tool, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.tools[n])
	}
	return out
}

// Len returns the number of tools in the library.
func (t *Table) Len() int {
	return len(t.tools)
}

func parseTool(node *xmlquery.Node) (Tool, error) {
	numberAttr := node.SelectAttr("number")
	if numberAttr == "" {
		return Tool{}, fmt.Errorf("tool element without number attribute")
	}
	number, err := strconv.Atoi(numberAttr)
	if err != nil || number < 0 {
		return Tool{}, fmt.Errorf("invalid tool number %q", numberAttr)
	}

	tool := Tool{Number: number, Name: node.SelectAttr("name")}
	if v, err := elementFloat(node, "diameter"); err != nil {
		return Tool{}, fmt.Errorf("tool %d: %w", number, err)
	} else {
		tool.Diameter = v
	}
	if v, err := elementFloat(node, "length"); err != nil {
		return Tool{}, fmt.Errorf("tool %d: %w", number, err)
	} else {
		tool.Length = v
	}

	if flutes := node.SelectElement("flutes"); flutes != nil {
		text := strings.TrimSpace(flutes.InnerText())
		n, err := strconv.Atoi(text)
		if err != nil {
			return Tool{}, fmt.Errorf("tool %d: invalid flutes %q", number, text)
		}
		tool.Flutes = n
	}
	return tool, nil
}

func elementFloat(node *xmlquery.Node, name string) (float64, error) {
	el := node.SelectElement(name)
	if el == nil {
		return 0, nil
	}
	text := strings.TrimSpace(el.InnerText())
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, text)
	}
	return v, nil
}
