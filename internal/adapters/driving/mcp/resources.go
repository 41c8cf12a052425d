package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for ragchat resources.
const uriScheme = "ragchat://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Indexed PDF documents in the active collection",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "status",
		Name:        "status",
		Description: "Collection statistics",
		MIMEType:    "application/json",
	}, s.handleStatusResource)
}

// handleSourcesResource returns the indexed sources as a JSON array.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Collection.ListSources(ctx))
}

// handleStatusResource returns the collection status as JSON.
func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	st := s.ports.Collection.Status(ctx)
	return jsonResource(req.Params.URI, StatusOutput{
		Collection: st.Collection,
		Backend:    st.Backend,
		Chunks:     st.Chunks,
		Sources:    st.Sources,
		Incomplete: st.Incomplete,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
