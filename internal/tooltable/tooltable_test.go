package tooltable

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleTable = `<?xml version="1.0"?>
<tooltable>
  <tool number="1" name="3mm drill">
    <diameter>3</diameter>
    <length>50</length>
    <flutes>2</flutes>
  </tool>
  <tool number="2" name="6mm endmill">
    <diameter>6</diameter>
  </tool>
  <tool number="10">
    <diameter>12.7</diameter>
  </tool>
</tooltable>`

func TestParse(t *testing.T) {
	table, err := Parse([]byte(sampleTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3", table.Len())
	}

	drill, ok := table.Lookup(1)
	if !ok {
		t.Fatal("Lookup(1) missed")
	}
	want := Tool{Number: 1, Name: "3mm drill", Diameter: 3, Length: 50, Flutes: 2}
	if drill != want {
		t.Errorf("tool 1 = %+v, want %+v", drill, want)
	}

	if _, ok := table.Lookup(99); ok {
		t.Error("Lookup(99) returned ok=true for missing tool")
	}
}

func TestToolsDocumentOrder(t *testing.T) {
	table, err := Parse([]byte(sampleTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	numbers := []int{}
	for _, tool := range table.Tools() {
		numbers = append(numbers, tool.Number)
	}
	if want := []int{1, 2, 10}; !reflect.DeepEqual(numbers, want) {
		t.Errorf("order = %v, want %v", numbers, want)
	}
}

func TestToolString(t *testing.T) {
	tests := []struct {
		tool Tool
		want string
	}{
		{Tool{Number: 2, Name: "6mm endmill"}, "6mm endmill"},
		{Tool{Number: 10, Diameter: 12.7}, "tool 10 d=12.7"},
		{Tool{Number: 4}, "tool 4"},
	}
	for _, tt := range tests {
		if got := tt.tool.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "no tools",
			data: `<tooltable></tooltable>`,
			want: "no tooltable/tool elements",
		},
		{
			name: "missing number",
			data: `<tooltable><tool name="x"/></tooltable>`,
			want: "without number",
		},
		{
			name: "bad number",
			data: `<tooltable><tool number="abc"/></tooltable>`,
			want: "invalid tool number",
		},
		{
			name: "negative number",
			data: `<tooltable><tool number="-1"/></tooltable>`,
			want: "invalid tool number",
		},
		{
			name: "duplicate number",
			data: `<tooltable><tool number="1"/><tool number="1"/></tooltable>`,
			want: "defined twice",
		},
		{
			name: "bad diameter",
			data: `<tooltable><tool number="1"><diameter>wide</diameter></tool></tooltable>`,
			want: "invalid diameter",
		},
		{
			name: "bad flutes",
			data: `<tooltable><tool number="1"><flutes>2.5</flutes></tool></tooltable>`,
			want: "invalid flutes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.xml")
	if err := os.WriteFile(path, []byte(sampleTable), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("Len = %d, want 3", table.Len())
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.xml")); err == nil {
		t.Error("want error for missing file")
	}
}
