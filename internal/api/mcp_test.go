package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LilyAva000/office-work/internal/tablefill"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	root := t.TempDir()

	dataDir := filepath.Join(root, "data")
	if err := os.MkdirAll(filepath.Join(dataDir, "persons"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc, err := json.Marshal(testPerson("李四", "研发部"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "persons", "lisi.json"), doc, 0o644); err != nil {
		t.Fatal(err)
	}

	templatesDir := filepath.Join(root, "templates")
	if err := os.MkdirAll(filepath.Join(templatesDir, "xlsx"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(templatesDir, "xlsx", "excel-info-template.xlsx"), []byte("{{姓名}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	return MCPDeps{
		Persons: NewFileStore(dataDir),
		Filler:  tablefill.New(templatesDir, filepath.Join(root, "output")),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_GetProfile(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGetProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
		"person_id": "lisi",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "李四") {
		t.Fatalf("profile JSON missing 姓名: %s", toolText(t, result))
	}
}

func TestMCPTool_GetProfile_Unknown(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGetProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
		"person_id": "nobody",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown person")
	}
}

func TestMCPTool_SetProfileField(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSetProfileField(deps)

	result, err := handler(context.Background(), makeCallToolRequest("set_profile_field", map[string]interface{}{
		"person_id":  "lisi",
		"subsection": "work_info",
		"field":      "部门",
		"value":      "市场部",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	saved, err := deps.Persons.LoadPerson("lisi")
	if err != nil {
		t.Fatal(err)
	}
	if saved.BasicInfo.WorkInfo["部门"] != "市场部" {
		t.Fatalf("部门 = %q, want 市场部", saved.BasicInfo.WorkInfo["部门"])
	}
}

func TestMCPTool_SetProfileField_BadSubsection(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSetProfileField(deps)

	result, err := handler(context.Background(), makeCallToolRequest("set_profile_field", map[string]interface{}{
		"person_id":  "lisi",
		"subsection": "resume",
		"field":      "x",
		"value":      "y",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown subsection")
	}
}

func TestMCPTool_ListTableTemplates(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpListTableTemplates(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_table_templates", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var names []string
	if err := json.Unmarshal([]byte(toolText(t, result)), &names); err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "excel-info.xlsx" {
		t.Fatalf("names = %v, want [excel-info.xlsx]", names)
	}
}

func TestMCPTool_AutofillTable(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpAutofillTable(deps)

	result, err := handler(context.Background(), makeCallToolRequest("autofill_table", map[string]interface{}{
		"table_name": "excel-info.xlsx",
		"persons":    []string{"lisi"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "static/output/excel-info-lisi.xlsx" {
		t.Fatalf("output path = %q", got)
	}
}

func TestMCPResource_Directory(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpResourceDirectory(deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "person://directory"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d entries, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var ids []string
	if err := json.Unmarshal([]byte(tc.Text), &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "lisi" {
		t.Fatalf("ids = %v, want [lisi]", ids)
	}
}
