package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/LilyAva000/office-work/internal/profile"
	"github.com/LilyAva000/office-work/internal/tablefill"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Persons *FileStore
	Filler  *tablefill.Filler
}

// NewMCPServer creates an MCP server exposing the profile store and table
// filling as tools, so assistants can read and edit person records directly.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"office-work",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("office-work — personal profile records, document editing, and table auto-fill."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch the full profile document for a person."),
			mcp.WithString("person_id", mcp.Description("Person id (login username)"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("set_profile_field",
			mcp.WithDescription("Set a single basic-info field on a person's profile."),
			mcp.WithString("person_id", mcp.Description("Person id"), mcp.Required()),
			mcp.WithString("subsection", mcp.Description("Either personal_info or work_info"), mcp.Required()),
			mcp.WithString("field", mcp.Description("Field label, e.g. 姓名 or 部门"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetProfileField(deps),
	)

	s.AddTool(
		mcp.NewTool("list_table_templates",
			mcp.WithDescription("List the document templates available for auto-fill."),
		),
		mcpListTableTemplates(deps),
	)

	s.AddTool(
		mcp.NewTool("autofill_table",
			mcp.WithDescription("Fill a document template from one or more person profiles and return the output path."),
			mcp.WithString("table_name", mcp.Description("Template name, e.g. excel-info.xlsx"), mcp.Required()),
			mcp.WithArray("persons", mcp.Description("Person ids to fill for"), mcp.Required()),
		),
		mcpAutofillTable(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"person://directory",
			"Person Directory",
			mcp.WithResourceDescription("Ids of all stored people as a JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDirectory(deps),
	)

	return s
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		personID, err := req.RequireString("person_id")
		if err != nil {
			return mcpError("person_id is required"), nil
		}

		doc, err := deps.Persons.LoadPerson(personID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}

		b, err := json.Marshal(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetProfileField(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		personID, err := req.RequireString("person_id")
		if err != nil {
			return mcpError("person_id is required"), nil
		}
		subsection, err := req.RequireString("subsection")
		if err != nil {
			return mcpError("subsection is required"), nil
		}
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		doc, err := deps.Persons.LoadPerson(personID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}

		switch subsection {
		case profile.SubsectionPersonalInfo:
			if doc.BasicInfo.PersonalInfo == nil {
				doc.BasicInfo.PersonalInfo = make(map[string]string)
			}
			doc.BasicInfo.PersonalInfo[field] = value
		case profile.SubsectionWorkInfo:
			if doc.BasicInfo.WorkInfo == nil {
				doc.BasicInfo.WorkInfo = make(map[string]string)
			}
			doc.BasicInfo.WorkInfo[field] = value
		default:
			return mcpError(fmt.Sprintf("unknown subsection %q", subsection)), nil
		}

		if err := deps.Persons.SavePerson(personID, doc); err != nil {
			return mcpError(fmt.Sprintf("failed to save profile: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s.%s = %s for %s", subsection, field, value, personID)), nil
	}
}

func mcpListTableTemplates(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := deps.Filler.TemplateNames()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list templates: %v", err)), nil
		}

		b, err := json.Marshal(names)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal template list: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAutofillTable(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, err := req.RequireString("table_name")
		if err != nil {
			return mcpError("table_name is required"), nil
		}
		ids := req.GetStringSlice("persons", nil)
		if len(ids) == 0 {
			return mcpError("persons is required"), nil
		}

		persons := make([]tablefill.PersonData, 0, len(ids))
		for _, id := range ids {
			doc, err := deps.Persons.LoadPerson(id)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to load profile %s: %v", id, err)), nil
			}
			persons = append(persons, tablefill.PersonData{ID: id, Doc: doc})
		}

		name, err := deps.Filler.Fill(ctx, tableName, persons)
		if err != nil {
			return mcpError(fmt.Sprintf("autofill failed: %v", err)), nil
		}
		return mcpText("static/output/" + name), nil
	}
}

func mcpResourceDirectory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := deps.Persons.PersonIDs()
		if err != nil {
			return nil, fmt.Errorf("listing persons: %w", err)
		}

		b, err := json.Marshal(ids)
		if err != nil {
			return nil, fmt.Errorf("marshaling person ids: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
