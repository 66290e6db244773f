package nameutil

import (
	"net"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

// ServerLabel derives a short display name for the server being probed from
// its URL or stdio command. It returns "server" when nothing useful can be
// inferred.
func ServerLabel(urlOrCommand string, isURL bool) string {
	var name string
	if isURL {
		name = labelFromURL(urlOrCommand)
	} else {
		name = labelFromCommand(urlOrCommand)
	}
	if name == "" {
		return "server"
	}
	return name
}

var (
	hostPrefixes = []string{"www", "api", "mcp"}
	hostSuffixes = []string{"com", "io", "app", "dev", "org", "net"}
	// transportSegments name the MCP endpoint rather than the server.
	transportSegments = []string{"sse", "mcp", "messages", "message", "v1"}

	commandPrefixes = []string{"mcp-server-", "server-", "mcp-"}
	versionSuffix   = regexp.MustCompile(`@[^/]*$`)
)

// labelFromURL uses the most specific non-generic host segment, falling back
// to the first path segment that does not name the transport.
func labelFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	host := u.Hostname()
	if host != "localhost" && net.ParseIP(host) == nil {
		parts := strings.Split(host, ".")
		for len(parts) > 0 && slices.Contains(hostPrefixes, parts[0]) {
			parts = parts[1:]
		}
		for len(parts) > 0 && slices.Contains(hostSuffixes, parts[len(parts)-1]) {
			parts = parts[:len(parts)-1]
		}
		if len(parts) > 0 {
			if slug := Slugify(parts[len(parts)-1]); slug != "" {
				return slug
			}
		}
	}

	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if slug := Slugify(seg); slug != "" && !slices.Contains(transportSegments, slug) {
			return slug
		}
	}
	return ""
}

// labelFromCommand names a stdio server after its package or script: the
// last argument that is not a flag, without scope, version or extension.
func labelFromCommand(command string) string {
	args, err := SplitCommand(command)
	if err != nil {
		return ""
	}
	_, argv := SplitEnv(args)

	var name string
	for _, arg := range slices.Backward(argv) {
		if !strings.HasPrefix(arg, "-") || strings.ContainsAny(arg, "/@") {
			name = arg
			break
		}
	}
	if name == "" {
		return ""
	}

	if strings.HasPrefix(name, "@") {
		if _, rest, ok := strings.Cut(name, "/"); ok {
			name = rest
		}
	}
	name = versionSuffix.ReplaceAllString(name, "")
	name = path.Base(name)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", "-")
	for _, prefix := range commandPrefixes {
		if trimmed, ok := strings.CutPrefix(name, prefix); ok {
			name = trimmed
			break
		}
	}
	return Slugify(name)
}
