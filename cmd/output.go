package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thellimist/mcprobe/internal/mcp"
	"github.com/thellimist/mcprobe/internal/schema"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

// printer writes command results as coloured text, JSON or YAML.
type printer struct {
	out    io.Writer
	format string
	quiet  bool
}

func newPrinter(cmd *cobra.Command) *printer {
	return &printer{out: cmd.OutOrStdout(), format: flagOutput, quiet: flagQuiet}
}

func (p *printer) structured() bool {
	return p.format == "json" || p.format == "yaml"
}

func (p *printer) encode(v any) error {
	switch p.format {
	case "yaml":
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// status prints a progress line in text mode unless --quiet is set.
func (p *printer) status(format string, args ...any) {
	if p.quiet || p.structured() {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

type serverView struct {
	Label           string `json:"label" yaml:"label"`
	Name            string `json:"name" yaml:"name"`
	Version         string `json:"version,omitempty" yaml:"version,omitempty"`
	ProtocolVersion string `json:"protocol_version" yaml:"protocol_version"`
	Instructions    string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

type paramView struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

type toolView struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Params      []paramView `json:"params,omitempty" yaml:"params,omitempty"`
}

type contentView struct {
	Type     string `json:"type" yaml:"type"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
}

type rpcErrorView struct {
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

type callView struct {
	Tool    string        `json:"tool" yaml:"tool"`
	IsError bool          `json:"is_error" yaml:"is_error"`
	Content []contentView `json:"content,omitempty" yaml:"content,omitempty"`
	Error   *rpcErrorView `json:"error,omitempty" yaml:"error,omitempty"`
}

func newServerView(s *session) serverView {
	return serverView{
		Label:           s.label,
		Name:            s.info.ServerInfo.Name,
		Version:         s.info.ServerInfo.Version,
		ProtocolVersion: s.info.ProtocolVersion,
		Instructions:    s.info.Instructions,
	}
}

func newToolViews(tools []mcp.Tool, withParams bool) ([]toolView, error) {
	views := make([]toolView, 0, len(tools))
	for _, t := range tools {
		v := toolView{Name: t.Name, Description: t.Description}
		if withParams {
			opts, err := schema.ExtractOptions(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name, err)
			}
			for _, o := range opts {
				v.Params = append(v.Params, paramView{
					Name:        o.PropertyName,
					Type:        o.GoType,
					Required:    o.Required,
					Description: o.Description,
					Default:     o.DefaultValue,
					Enum:        o.EnumValues,
				})
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// newCallView interprets a tools/call response. JSON-RPC errors are kept
// in the view rather than returned.
func newCallView(tool string, resp *mcp.JSONRPCResponse) (*callView, error) {
	v := &callView{Tool: tool}
	if resp.Error != nil {
		v.IsError = true
		v.Error = &rpcErrorView{Code: resp.Error.Code, Message: resp.Error.Message}
		return v, nil
	}
	result, err := mcp.DecodeCallToolResult(resp)
	if err != nil {
		return nil, err
	}
	v.IsError = result.IsError
	for _, c := range result.Content {
		v.Content = append(v.Content, contentView{Type: c.Type, Text: c.Text, MimeType: c.MimeType})
	}
	return v, nil
}

func (p *printer) printServer(v serverView) {
	version := ""
	if v.Version != "" {
		version = " " + v.Version
	}
	p.line("%s %s%s %s", bold("Server:"), v.Name, version, faint("(protocol "+v.ProtocolVersion+")"))
}

func (p *printer) printTools(views []toolView) {
	p.line("%s (%d)", bold("Tools"), len(views))
	for _, t := range views {
		if desc := truncate(firstLine(t.Description), 72); desc != "" {
			p.line("  - %s: %s", t.Name, desc)
		} else {
			p.line("  - %s", t.Name)
		}
		for _, param := range t.Params {
			req := ""
			if param.Required {
				req = " " + red("(required)")
			}
			p.line("      %s %s%s  %s", param.Name, faint(param.Type), req, truncate(firstLine(param.Description), 60))
		}
	}
}

func (p *printer) printCall(v *callView) {
	switch {
	case v.Error != nil:
		p.line("%s %s: error %d: %s", red("✗"), v.Tool, v.Error.Code, v.Error.Message)
		return
	case v.IsError:
		p.line("%s %s returned an error result", red("✗"), v.Tool)
	default:
		p.line("%s %s", green("✓"), v.Tool)
	}
	for _, c := range v.Content {
		if c.Type == "text" {
			p.line("%s", c.Text)
			continue
		}
		p.line("%s", faint(fmt.Sprintf("[%s content %s]", c.Type, c.MimeType)))
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
