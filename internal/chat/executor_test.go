package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/catalog"
	"github.com/synssins/homebox-companion/internal/models"
)

// fakeCatalog records mutations so tests can assert that gated calls
// produced no side effects.
type fakeCatalog struct {
	mu            sync.Mutex
	itemsCreated  []catalog.ItemInput
	locsCreated   []string
	searchQueries []string
}

func (f *fakeCatalog) CreateItem(ctx context.Context, item catalog.ItemInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemsCreated = append(f.itemsCreated, item)
	return "item-1", nil
}

func (f *fakeCatalog) CreateLocation(ctx context.Context, name, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locsCreated = append(f.locsCreated, name)
	return "loc-1", nil
}

func (f *fakeCatalog) ListLocations(ctx context.Context) ([]catalog.Location, error) {
	return []catalog.Location{{ID: "loc-1", Name: "Garage"}}, nil
}

func (f *fakeCatalog) SearchItems(ctx context.Context, query string) ([]catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchQueries = append(f.searchQueries, query)
	return nil, nil
}

func (f *fakeCatalog) createdItems() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.itemsCreated)
}

func TestApprovalIDDeterministic(t *testing.T) {
	a := ApprovalID("call_123")
	b := ApprovalID("call_123")
	c := ApprovalID("call_456")

	assert.Equal(t, a, b, "same call ID must map to the same approval ID")
	assert.NotEqual(t, a, c, "different call IDs must map to different approval IDs")
}

func TestExecuteReadOnlyRunsImmediately(t *testing.T) {
	fake := &fakeCatalog{}
	e := NewExecutor(NewCatalogRegistry(fake), time.Minute)

	result, err := e.Execute(context.Background(), models.ToolCall{
		ID: "call_1", Name: "search_items", Arguments: `{"query":"router"}`,
	})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, []string{"router"}, fake.searchQueries)
}

func TestExecuteMutatingWithoutApproval(t *testing.T) {
	fake := &fakeCatalog{}
	e := NewExecutor(NewCatalogRegistry(fake), time.Minute)

	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"name":"Router"}`}

	_, err := e.Execute(context.Background(), call)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAwaitingApproval, apperrors.KindOf(err))
	assert.Zero(t, fake.createdItems(), "gated call must produce no side effect")

	// Still pending after RequireApproval: same outcome.
	e.RequireApproval("s1", call)
	_, err = e.Execute(context.Background(), call)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAwaitingApproval, apperrors.KindOf(err))
	assert.Zero(t, fake.createdItems())
}

func TestExecuteMutatingApproved(t *testing.T) {
	fake := &fakeCatalog{}
	e := NewExecutor(NewCatalogRegistry(fake), time.Minute)

	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"name":"Router"}`}
	approval := e.RequireApproval("s1", call)

	_, err := e.Resolve(approval.ID, true)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 1, fake.createdItems())
}

func TestResolveExactlyOnce(t *testing.T) {
	e := NewExecutor(NewCatalogRegistry(&fakeCatalog{}), time.Minute)
	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"name":"Router"}`}
	approval := e.RequireApproval("s1", call)

	resolved, err := e.Resolve(approval.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, resolved.State)
	require.NotNil(t, resolved.ResolvedAt)

	// A second resolution conflicts and leaves the state unchanged.
	_, err = e.Resolve(approval.ID, true)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	after, err := e.GetApproval(approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, after.State)
}

func TestExecuteMutatingRejected(t *testing.T) {
	fake := &fakeCatalog{}
	e := NewExecutor(NewCatalogRegistry(fake), time.Minute)

	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"name":"Router"}`}
	approval := e.RequireApproval("s1", call)
	_, err := e.Resolve(approval.ID, false)
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), call)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Zero(t, fake.createdItems())
}

func TestApprovalTTLExpiry(t *testing.T) {
	e := NewExecutor(NewCatalogRegistry(&fakeCatalog{}), time.Millisecond)
	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"name":"Router"}`}
	approval := e.RequireApproval("s1", call)

	time.Sleep(5 * time.Millisecond)

	got, err := e.GetApproval(approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalExpired, got.State)

	_, err = e.Resolve(approval.ID, true)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRequireApprovalIdempotent(t *testing.T) {
	e := NewExecutor(NewCatalogRegistry(&fakeCatalog{}), time.Minute)
	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"name":"Router"}`}

	first := e.RequireApproval("s1", call)
	second := e.RequireApproval("s1", call)
	assert.Same(t, first, second, "retransmits of the same call map to one approval")
}

func TestExpireSession(t *testing.T) {
	e := NewExecutor(NewCatalogRegistry(&fakeCatalog{}), time.Minute)
	a := e.RequireApproval("s1", models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{}`})
	b := e.RequireApproval("s2", models.ToolCall{ID: "call_2", Name: "create_item", Arguments: `{}`})

	expired := e.ExpireSession("s1")
	require.Len(t, expired, 1)
	assert.Equal(t, models.ApprovalExpired, a.State)
	assert.Equal(t, models.ApprovalPending, b.State, "other sessions' approvals stay pending")
}

func TestExecuteUnknownTool(t *testing.T) {
	e := NewExecutor(NewCatalogRegistry(&fakeCatalog{}), time.Minute)

	result, err := e.Execute(context.Background(), models.ToolCall{ID: "call_1", Name: "nuke_inventory"})
	require.NoError(t, err, "unknown tools surface as failed results for the model, not errors")
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestExecuteToolRuntimeFailure(t *testing.T) {
	e := NewExecutor(NewCatalogRegistry(&fakeCatalog{}), time.Minute)
	call := models.ToolCall{ID: "call_1", Name: "create_item", Arguments: `{"quantity":1}`}
	approval := e.RequireApproval("s1", call)
	_, err := e.Resolve(approval.ID, true)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "name")
}
