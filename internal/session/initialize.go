package session

import "strings"

// WorkspaceFolder mirrors the client-supplied workspaceFolders[] entry of
// an MCP `initialize` request.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// RootsCapability mirrors the `capabilities.roots` block of an `initialize`
// request's clientCapabilities.
type RootsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResolveWorkDir implements work_dir priority:
// workspaceFolders[0].uri -> rootUri -> rootPath, with file:// URIs
// stripped to a plain filesystem path.
func ResolveWorkDir(workspaceFolders []WorkspaceFolder, rootURI, rootPath string) string {
	if len(workspaceFolders) > 0 && workspaceFolders[0].URI != "" {
		return stripFileScheme(workspaceFolders[0].URI)
	}
	if rootURI != "" {
		return stripFileScheme(rootURI)
	}
	return rootPath
}

func stripFileScheme(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// Initialize applies the initialize transition: sets the
// negotiated protocol version and roots capability, binds work_dir/
// project_id, and marks the session initialized. projectID may be empty
// when the work dir is not registered with any project (the router
// returned no match).
func (s *McpSession) Initialize(protocolVersion, workDir, projectID string, roots *RootsCapability) {
	s.ProtocolVersion = protocolVersion
	s.WorkDir = workDir
	s.ProjectID = projectID
	if roots != nil {
		s.SupportsRoots = true
		s.RootsListChanged = roots.ListChanged
	}
	s.Initialized = true
}
