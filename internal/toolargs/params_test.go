package toolargs

import (
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

func decodeDefaults(t *testing.T, doc string) *Defaults {
	t.Helper()
	var d Defaults
	if _, err := toml.Decode(doc, &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return &d
}

const sampleDefaults = `
[params]
org_id = "acme-corp"
team_id = "engineering"

[tools.create_issue.params]
project_id = "PROJ-123"
labels = ["bug", "urgent"]
team_id = "platform"

[tools.list_issues.params]
status = "open"
`

func TestDecodeFromTOML(t *testing.T) {
	d := decodeDefaults(t, sampleDefaults)

	if got := d.Params["org_id"]; got != "acme-corp" {
		t.Errorf("global org_id = %v, want acme-corp", got)
	}
	labels, ok := d.Tools["create_issue"].Params["labels"].([]any)
	if !ok || len(labels) != 2 {
		t.Fatalf("labels = %#v, want two-element list", d.Tools["create_issue"].Params["labels"])
	}
}

func TestFor_ToolOverridesGlobal(t *testing.T) {
	d := decodeDefaults(t, sampleDefaults)

	got := d.For("create_issue")
	if got["team_id"] != "platform" {
		t.Errorf("team_id = %v, want platform (tool wins)", got["team_id"])
	}
	if got["org_id"] != "acme-corp" {
		t.Errorf("org_id = %v, want acme-corp", got["org_id"])
	}
	if _, ok := got["status"]; ok {
		t.Error("list_issues params leaked into create_issue")
	}
}

func TestApply_ExplicitWins(t *testing.T) {
	d := decodeDefaults(t, sampleDefaults)
	explicit := map[string]any{"org_id": "other", "title": "hello"}

	got := d.Apply("list_issues", explicit)
	want := map[string]any{
		"org_id":  "other",
		"team_id": "engineering",
		"status":  "open",
		"title":   "hello",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply = %v, want %v", got, want)
	}
	if len(explicit) != 2 {
		t.Error("Apply modified the explicit map")
	}
}

func TestApply_EmptyDefaults(t *testing.T) {
	var d Defaults
	got := d.Apply("anything", nil)
	if len(got) != 0 {
		t.Errorf("Apply = %v, want empty", got)
	}
}

func TestNames(t *testing.T) {
	d := decodeDefaults(t, sampleDefaults)
	want := []string{"labels", "org_id", "project_id", "team_id"}
	if got := d.Names("create_issue"); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}

func TestValidate_EmptyNames(t *testing.T) {
	d := &Defaults{Params: map[string]any{"": 1}}
	if err := d.Validate(); err == nil {
		t.Error("expected error for empty global param name")
	}
	d = &Defaults{Tools: map[string]ToolParams{"t": {Params: map[string]any{"": 1}}}}
	if err := d.Validate(); err == nil {
		t.Error("expected error for empty tool param name")
	}
}

func TestWithOverrides(t *testing.T) {
	d := decodeDefaults(t, sampleDefaults)

	out, err := d.WithOverrides(
		[]string{"org_id=override", `labels=["x","y"]`, "expr=a=b"},
		[]string{"list_issues.status=closed", "new_tool.limit=5"},
	)
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}

	if out.Params["org_id"] != "override" {
		t.Errorf("org_id = %v, want override", out.Params["org_id"])
	}
	if out.Params["expr"] != "a=b" {
		t.Errorf("expr = %v, want a=b", out.Params["expr"])
	}
	if !reflect.DeepEqual(out.Params["labels"], []any{"x", "y"}) {
		t.Errorf("labels = %#v", out.Params["labels"])
	}
	if out.Tools["list_issues"].Params["status"] != "closed" {
		t.Errorf("status = %v, want closed", out.Tools["list_issues"].Params["status"])
	}
	if out.Tools["new_tool"].Params["limit"] != float64(5) {
		t.Errorf("limit = %#v, want 5", out.Tools["new_tool"].Params["limit"])
	}

	// The original is untouched.
	if d.Params["org_id"] != "acme-corp" || d.Tools["list_issues"].Params["status"] != "open" {
		t.Error("WithOverrides modified the receiver")
	}
}

func TestWithOverrides_NilReceiver(t *testing.T) {
	var d *Defaults
	out, err := d.WithOverrides([]string{"a=1"}, nil)
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}
	if out.Params["a"] != float64(1) {
		t.Errorf("a = %#v, want 1", out.Params["a"])
	}
}

func TestWithOverrides_Errors(t *testing.T) {
	tests := []struct {
		name      string
		global    []string
		tool      []string
		wantInErr string
	}{
		{"set missing equals", []string{"novalue"}, nil, "expected key=value"},
		{"set empty key", []string{"=v"}, nil, "empty key"},
		{"tool missing dot", nil, []string{"key=value"}, "expected tool.key=value"},
		{"tool empty name", nil, []string{".key=value"}, "expected tool.key=value"},
		{"tool missing equals", nil, []string{"tool.key"}, "expected key=value"},
		{"tool empty key", nil, []string{"tool.=v"}, "empty key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Defaults{}).WithOverrides(tt.global, tt.tool)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantInErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantInErr)
			}
		})
	}
}
