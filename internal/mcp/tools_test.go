package mcp

import "testing"

func TestBuildToolsRegistersAllToolsWithUniqueNames(t *testing.T) {
	tools := BuildTools()
	if len(tools) != 15 {
		t.Fatalf("expected 15 tools, got %d", len(tools))
	}

	seen := make(map[string]bool, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			t.Fatal("tool with empty name")
		}
		if tool.Description == "" {
			t.Fatalf("tool %s missing description", tool.Name)
		}
		if seen[tool.Name] {
			t.Fatalf("duplicate tool name: %s", tool.Name)
		}
		seen[tool.Name] = true
	}
}

func TestStructuredAndStructuredErrorShapes(t *testing.T) {
	ok := Structured(map[string]int{"a": 1})
	if ok.IsError {
		t.Fatal("expected success result to not be an error")
	}
	if len(ok.Content) != 1 || ok.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %+v", ok.Content)
	}

	bad := StructuredError(map[string]string{"error": "boom"})
	if !bad.IsError {
		t.Fatal("expected error result to be marked as an error")
	}
}
