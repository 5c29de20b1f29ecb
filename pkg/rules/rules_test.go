package rules

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_Compiles(t *testing.T) {
	ct := Default()
	if ct.Version != TableVersion {
		t.Errorf("version = %q, want %q", ct.Version, TableVersion)
	}
	wantIDs := []string{"font-weight", "gradient-arity", "latex-graph-label", "escape-sequence"}
	rules := ct.Rules()
	if len(rules) != len(wantIDs) {
		t.Fatalf("expected %d rules, got %d", len(wantIDs), len(rules))
	}
	for i, id := range wantIDs {
		if rules[i].ID != id {
			t.Errorf("rules[%d].ID = %q, want %q", i, rules[i].ID, id)
		}
		if rules[i].EffectiveSeverity() != SeverityWarning {
			t.Errorf("rule %s: severity = %q, want warning", id, rules[i].EffectiveSeverity())
		}
	}
}

func TestMatch_DefaultTable(t *testing.T) {
	ct := Default()
	tests := []struct {
		name string
		line string
		want string // rule id, "" for no match
	}{
		{"weight double quotes", `x = Text("hi", weight="bold")`, "font-weight"},
		{"weight single quotes", `x = Text('hi', weight='bold')`, "font-weight"},
		{"font_weight constant", `t = Text("a", font_weight=BOLD)`, "font-weight"},
		{"gradient four colors", `obj.set_fill_by_gradient(RED, GREEN, BLUE, YELLOW)`, "gradient-arity"},
		{"gradient three colors", `sq.set_fill_by_gradient(RED, GREEN, BLUE)`, "gradient-arity"},
		{"gradient two colors", `obj.set_fill_by_gradient(RED, GREEN)`, ""},
		{"gradient nested call two colors", `obj.set_fill_by_gradient(interpolate_color(RED, BLUE, .5), GREEN)`, ""},
		{"gradient nested call three colors", `obj.set_fill_by_gradient(interpolate_color(RED, BLUE, .5), GREEN, BLUE)`, "gradient-arity"},
		{"gradient string comma", `obj.set_fill_by_gradient(c("a,b"), GREEN)`, ""},
		{"gradient unclosed call", `obj.set_fill_by_gradient(RED, GREEN, BLUE`, ""},
		{"color gradient untouched", `obj.set_color_by_gradient(RED, GREEN, BLUE)`, ""},
		{"latex label", `label = axes.get_graph_label(graph, label="\sin(x)")`, "latex-graph-label"},
		{"latex label escaped", `label = axes.get_graph_label(graph, label="\\sin(x)")`, ""},
		{"plain label", `label = axes.get_graph_label(graph, label="y")`, ""},
		{"escape s", `path = "C:\scenes"`, "escape-sequence"},
		{"escape c", `t = Text("\circle")`, "escape-sequence"},
		{"escape cos allowed", `t = MathTex("\cos")`, ""},
		{"doubled backslash", `t = Text("a\\sb")`, ""},
		{"plain code", `self.play(Create(circle))`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := ct.Match(tt.line)
			if tt.want == "" {
				if ok {
					t.Errorf("expected no match, got %q", r.ID)
				}
				return
			}
			if !ok {
				t.Fatalf("expected %q to match", tt.want)
			}
			if r.ID != tt.want {
				t.Errorf("matched %q, want %q", r.ID, tt.want)
			}
		})
	}
}

func TestMatch_FirstRuleWins(t *testing.T) {
	ct := Default()
	r, ok := ct.Match(`obj.set_fill_by_gradient(RED, GREEN, BLUE); Text("x", weight="bold")`)
	if !ok {
		t.Fatal("expected a match")
	}
	if r.ID != "font-weight" {
		t.Errorf("matched %q, want font-weight (table order)", r.ID)
	}
}

func TestApply_Rewrites(t *testing.T) {
	ct := Default()
	byID := map[string]*CompiledRule{}
	for _, r := range ct.Rules() {
		byID[r.ID] = r
	}

	tests := []struct {
		rule string
		in   string
		want string
	}{
		{"font-weight", `x = Text("hi", weight="bold")`, `x = Text("hi")`},
		{"font-weight", `x = Text(weight="bold", font_size=24)`, `x = Text(font_size=24)`},
		{"font-weight", `x = Text("hi", font_weight=BOLD, color=RED)`, `x = Text("hi", color=RED)`},
		{"gradient-arity", `sq.set_fill_by_gradient(RED, GREEN, BLUE)`, `sq.set_color_by_gradient(RED, GREEN, BLUE)`},
		{"escape-sequence", `p = "C:\scenes"`, `p = "C:\\scenes"`},
	}
	for _, tt := range tests {
		got := byID[tt.rule].Apply(tt.in)
		if got != tt.want {
			t.Errorf("%s.Apply(%q) = %q, want %q", tt.rule, tt.in, got, tt.want)
		}
	}
	if byID["latex-graph-label"].HasFix() {
		t.Error("latex-graph-label should have no mechanical fix")
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{" RED,GREEN ,  BLUE ", []string{"RED", "GREEN", "BLUE"}},
		{"interpolate_color(RED, BLUE, .5), GREEN", []string{"interpolate_color(RED, BLUE, .5)", "GREEN"}},
		{"[RED, BLUE], {'a': 1, 'b': 2}", []string{"[RED, BLUE]", "{'a': 1, 'b': 2}"}},
		{`"a,b", 'c\',d'`, []string{`"a,b"`, `'c\',d'`}},
	}
	for _, tt := range tests {
		got := SplitArgs(tt.raw)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCallArgs(t *testing.T) {
	tests := []struct {
		rest string
		want string
		ok   bool
	}{
		{"RED, GREEN)", "RED, GREEN", true},
		{"f(a, b), c) + g(x)", "f(a, b), c", true},
		{"\")\", RED)", "\")\", RED", true},
		{"RED, GREEN", "", false},
		{"RED]", "RED", false},
	}
	for _, tt := range tests {
		got, ok := callArgs(tt.rest)
		if got != tt.want || ok != tt.ok {
			t.Errorf("callArgs(%q) = %q, %v; want %q, %v", tt.rest, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoad_UnknownField(t *testing.T) {
	src := `version: rules/v1
target: test
rules:
  - id: a
    kind: LatexUsageWarning
    match: {contains: [x]}
    message: m
    colour: red
`
	if _, err := Load(strings.NewReader(src)); err == nil {
		t.Fatal("expected strict decode to reject unknown field")
	}
}

func TestCompile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "duplicate id",
			src: `version: rules/v1
target: t
rules:
  - {id: a, kind: LatexUsageWarning, match: {contains: [x]}, message: m}
  - {id: a, kind: LatexUsageWarning, match: {contains: [y]}, message: m}
`,
			want: "duplicate rule ID",
		},
		{
			name: "generic kind",
			src: `version: rules/v1
target: t
rules:
  - {id: a, kind: GenericSyntaxError, match: {contains: [x]}, message: m}
`,
			want: "semantic",
		},
		{
			name: "bad regex",
			src: `version: rules/v1
target: t
rules:
  - {id: a, kind: LatexUsageWarning, match: {regex: "(unclosed"}, message: m}
`,
			want: "invalid regex",
		},
		{
			name: "when without call",
			src: `version: rules/v1
target: t
rules:
  - {id: a, kind: GradientArityIncompatibility, match: {contains: [x], when: "argc > 1"}, message: m}
`,
			want: "when requires call",
		},
		{
			name: "when not bool",
			src: `version: rules/v1
target: t
rules:
  - {id: a, kind: GradientArityIncompatibility, match: {call: f, when: "argc + 1"}, message: m}
`,
			want: "compile when",
		},
		{
			name: "empty match",
			src: `version: rules/v1
target: t
rules:
  - {id: a, kind: LatexUsageWarning, match: {}, message: m}
`,
			want: "match needs at least one",
		},
		{
			name: "wrong version",
			src: `version: rules/v9
target: t
rules:
  - {id: a, kind: LatexUsageWarning, match: {contains: [x]}, message: m}
`,
			want: "semantic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Load(strings.NewReader(tt.src))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			_, err = Compile(tbl)
			if err == nil {
				t.Fatal("expected compile error")
			}
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("expected ErrInvalidTable, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestCompile_CustomCallRule(t *testing.T) {
	src := `version: rules/v1
target: custom
rules:
  - id: too-many-points
    kind: GradientArityIncompatibility
    match:
      call: Polygon
      when: 'argc > 4 && args[0] != "*points"'
    message: too many points
`
	tbl, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	ct, err := Compile(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ct.Match("p = Polygon(A, B, C, D, E)"); !ok {
		t.Error("expected 5-point polygon to match")
	}
	if _, ok := ct.Match("p = Polygon(A, B, C)"); ok {
		t.Error("expected 3-point polygon not to match")
	}
	if _, ok := ct.Match("p = Polygon(*points, B, C, D, E)"); ok {
		t.Error("expected splat polygon not to match")
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, DefaultYAML(), 0o644); err != nil {
		t.Fatal(err)
	}
	ct, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(ct.Rules()) != 4 {
		t.Errorf("expected 4 rules, got %d", len(ct.Rules()))
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["$id"] == nil {
		t.Error("expected $id in schema")
	}
	if !strings.Contains(string(data), "GradientArityIncompatibility") {
		t.Error("expected kind enum in schema")
	}
}

func TestTableRoundTrip(t *testing.T) {
	ct := Default()
	tbl := ct.Table()
	if _, err := Compile(tbl); err != nil {
		t.Fatalf("recompiling exported table: %v", err)
	}
}
