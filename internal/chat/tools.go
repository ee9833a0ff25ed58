package chat

import (
	"context"
	"encoding/json"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/catalog"
	"github.com/synssins/homebox-companion/internal/providers"
)

// Permission is a tool's permission class. Read-only tools execute
// immediately; mutating tools require an approved PendingApproval.
type Permission string

const (
	PermissionReadOnly Permission = "read_only"
	PermissionMutating Permission = "mutating"
)

// Tool is the shared capability contract. New tools are added by
// implementing this interface and registering them, never by branching
// on type.
type Tool interface {
	Name() string
	Description() string
	Permission() Permission
	Schema() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry maps tool names to implementations, preserving registration
// order for stable tool definitions.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		r.tools[tool.Name()] = tool
		r.order = append(r.order, tool.Name())
	}
	return r
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, apperrors.NotFound("tool", name)
	}
	return tool, nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions renders the registry in the wire shape chat providers
// expect.
func (r *Registry) Definitions() []providers.ToolDefinition {
	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return defs
}

// CatalogClient is the slice of the Homebox client the tools need.
type CatalogClient interface {
	CreateItem(ctx context.Context, item catalog.ItemInput) (string, error)
	CreateLocation(ctx context.Context, name, description string) (string, error)
	ListLocations(ctx context.Context) ([]catalog.Location, error)
	SearchItems(ctx context.Context, query string) ([]catalog.Item, error)
}

// NewCatalogRegistry returns the standard tool set over a catalog
// client.
func NewCatalogRegistry(client CatalogClient) *Registry {
	return NewRegistry(
		&listLocationsTool{client: client},
		&searchItemsTool{client: client},
		&createItemTool{client: client},
		&createLocationTool{client: client},
	)
}

type listLocationsTool struct {
	client CatalogClient
}

func (t *listLocationsTool) Name() string           { return "list_locations" }
func (t *listLocationsTool) Permission() Permission { return PermissionReadOnly }
func (t *listLocationsTool) Description() string {
	return "List all storage locations in the inventory catalog."
}

func (t *listLocationsTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
}

func (t *listLocationsTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	return t.client.ListLocations(ctx)
}

type searchItemsTool struct {
	client CatalogClient
}

func (t *searchItemsTool) Name() string           { return "search_items" }
func (t *searchItemsTool) Permission() Permission { return PermissionReadOnly }
func (t *searchItemsTool) Description() string {
	return "Search inventory items by name or description."
}

func (t *searchItemsTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search text; empty lists all items."}},"additionalProperties":false}`)
}

func (t *searchItemsTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var input struct {
		Query string `json:"query"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return nil, apperrors.Invalid("invalid search_items arguments: " + err.Error())
		}
	}
	return t.client.SearchItems(ctx, input.Query)
}

type createItemTool struct {
	client CatalogClient
}

func (t *createItemTool) Name() string           { return "create_item" }
func (t *createItemTool) Permission() Permission { return PermissionMutating }
func (t *createItemTool) Description() string {
	return "Create a new inventory item in the catalog. Requires user approval."
}

func (t *createItemTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{
		"name":{"type":"string"},
		"description":{"type":"string"},
		"quantity":{"type":"integer","minimum":1},
		"location_id":{"type":"string"},
		"manufacturer":{"type":"string"},
		"model_number":{"type":"string"},
		"serial_number":{"type":"string"},
		"notes":{"type":"string"}
	},"required":["name"],"additionalProperties":false}`)
}

func (t *createItemTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var input struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Quantity     int    `json:"quantity"`
		LocationID   string `json:"location_id"`
		Manufacturer string `json:"manufacturer"`
		ModelNumber  string `json:"model_number"`
		SerialNumber string `json:"serial_number"`
		Notes        string `json:"notes"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, apperrors.Invalid("invalid create_item arguments: " + err.Error())
	}
	if input.Name == "" {
		return nil, apperrors.Invalid("create_item requires a name")
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}

	itemID, err := t.client.CreateItem(ctx, catalog.ItemInput{
		Name:         input.Name,
		Description:  input.Description,
		Quantity:     input.Quantity,
		LocationID:   input.LocationID,
		Manufacturer: input.Manufacturer,
		ModelNumber:  input.ModelNumber,
		SerialNumber: input.SerialNumber,
		Notes:        input.Notes,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"item_id": itemID}, nil
}

type createLocationTool struct {
	client CatalogClient
}

func (t *createLocationTool) Name() string           { return "create_location" }
func (t *createLocationTool) Permission() Permission { return PermissionMutating }
func (t *createLocationTool) Description() string {
	return "Create a new storage location in the catalog. Requires user approval."
}

func (t *createLocationTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{
		"name":{"type":"string"},
		"description":{"type":"string"}
	},"required":["name"],"additionalProperties":false}`)
}

func (t *createLocationTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, apperrors.Invalid("invalid create_location arguments: " + err.Error())
	}
	if input.Name == "" {
		return nil, apperrors.Invalid("create_location requires a name")
	}

	locationID, err := t.client.CreateLocation(ctx, input.Name, input.Description)
	if err != nil {
		return nil, err
	}
	return map[string]string{"location_id": locationID}, nil
}
