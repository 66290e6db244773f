// Package schema reads the JSON Schema a tool publishes as its inputSchema
// and turns command line key=value arguments into typed tool arguments.
package schema

// Kinds an argument value is coerced to. Unknown and missing schema types
// map to KindString.
const (
	KindString     = "string"
	KindInt        = "int"
	KindNumber     = "float64"
	KindBool       = "bool"
	KindStringList = "[]string"
	KindIntList    = "[]int"
	KindObject     = "object"
)

// ToolOption describes one property of a tool's input schema.
type ToolOption struct {
	PropertyName string // JSON key sent to the server
	FlagName     string // kebab-case alias accepted on the command line
	Description  string
	Required     bool
	GoType       string // one of the Kind constants
	DefaultValue any
	EnumValues   []string
}
