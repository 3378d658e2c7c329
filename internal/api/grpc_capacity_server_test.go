package api

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

type fakeRecipes struct {
	recipes map[string]models.Recipe
	stock   map[string][]inventory.Requirement
}

func (f *fakeRecipes) Get(tenantID, id string) (*models.Recipe, error) {
	r, ok := f.recipes[tenantID+"/"+id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRecipes) Capacity(tenantID, recipeID string) (inventory.CapacityResult, error) {
	return inventory.CalculateCapacity(f.stock[tenantID+"/"+recipeID]), nil
}

type fakeSales struct {
	recipes *fakeRecipes
}

func (f *fakeSales) Validate(tenantID, recipeID string, quantity int) (inventory.SaleValidation, error) {
	if _, err := f.recipes.Get(tenantID, recipeID); err != nil {
		return inventory.SaleValidation{}, err
	}
	return inventory.ValidateSale(f.recipes.stock[tenantID+"/"+recipeID], quantity), nil
}

func startCapacityGRPC(t *testing.T, checker TenantChecker) *CapacityClient {
	t.Helper()
	recipes := &fakeRecipes{
		recipes: map[string]models.Recipe{
			"tenant-1/rec-1": {ID: "rec-1", TenantID: "tenant-1", Name: "Маргарита", Type: models.RecipePizza},
		},
		stock: map[string][]inventory.Requirement{
			"tenant-1/rec-1": margherita,
		},
	}

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer(grpc.UnaryInterceptor(CapacityAuthInterceptor(newTestTokens(), checker)))
	RegisterCapacityServiceServer(server, NewCapacityGRPCServer(recipes, &fakeSales{recipes: recipes}))
	go server.Serve(listener)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewCapacityClient(conn)
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("structpb: %v", err)
	}
	return s
}

func withToken(t *testing.T, tenantID string) context.Context {
	t.Helper()
	token := issueToken(t, newTestTokens(), tenantID, string(models.RoleStaff))
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestCapacityGRPC_CalculateWithoutToken(t *testing.T) {
	client := startCapacityGRPC(t, nil)

	req := mustStruct(t, map[string]interface{}{
		"requirements": []interface{}{
			map[string]interface{}{"ingredient_id": "a", "ingredient_name": "A", "quantity_needed": 2, "current_stock": 7},
			map[string]interface{}{"ingredient_id": "b", "ingredient_name": "B", "quantity_needed": 1, "current_stock": 10},
		},
	})
	resp, err := client.Invoke(context.Background(), "Calculate", req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if got := resp.Fields["capacity"].GetNumberValue(); got != 3 {
		t.Errorf("capacity = %v, want 3", got)
	}
	if got := resp.Fields["limiting_ingredient_id"].GetStringValue(); got != "a" {
		t.Errorf("limiting_ingredient_id = %q, want a", got)
	}
}

func TestCapacityGRPC_RecipeCapacity(t *testing.T) {
	client := startCapacityGRPC(t, &fakeTenantChecker{operational: map[string]bool{"tenant-1": true}})

	resp, err := client.Invoke(withToken(t, "tenant-1"), "RecipeCapacity", mustStruct(t, map[string]interface{}{"recipe_id": "rec-1"}))
	if err != nil {
		t.Fatalf("RecipeCapacity: %v", err)
	}
	if got := resp.Fields["capacity"].GetNumberValue(); got != 4 {
		t.Errorf("capacity = %v, want 4", got)
	}
	if got := resp.Fields["recipe_name"].GetStringValue(); got != "Маргарита" {
		t.Errorf("recipe_name = %q", got)
	}
	if got := resp.Fields["limiting_ingredient_name"].GetStringValue(); got != "Моцарелла" {
		t.Errorf("limiting_ingredient_name = %q, want Моцарелла", got)
	}
}

func TestCapacityGRPC_Errors(t *testing.T) {
	client := startCapacityGRPC(t, &fakeTenantChecker{operational: map[string]bool{"tenant-1": true}})
	recipeReq := mustStruct(t, map[string]interface{}{"recipe_id": "rec-1"})

	tests := []struct {
		name   string
		ctx    context.Context
		method string
		req    *structpb.Struct
		want   codes.Code
	}{
		{"no token", context.Background(), "RecipeCapacity", recipeReq, codes.Unauthenticated},
		{
			"bad token",
			metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer garbage"),
			"RecipeCapacity", recipeReq, codes.Unauthenticated,
		},
		{"suspended tenant", withToken(t, "tenant-2"), "RecipeCapacity", recipeReq, codes.PermissionDenied},
		{"missing recipe id", withToken(t, "tenant-1"), "ValidateSale", mustStruct(t, map[string]interface{}{"quantity": 1}), codes.InvalidArgument},
		{"unknown recipe", withToken(t, "tenant-1"), "RecipeCapacity", mustStruct(t, map[string]interface{}{"recipe_id": "nope"}), codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Invoke(tt.ctx, tt.method, tt.req)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestCapacityGRPC_ValidateSale(t *testing.T) {
	client := startCapacityGRPC(t, nil)

	resp, err := client.Invoke(withToken(t, "tenant-1"), "ValidateSale", mustStruct(t, map[string]interface{}{
		"recipe_id": "rec-1",
		"quantity":  5,
	}))
	if err != nil {
		t.Fatalf("ValidateSale: %v", err)
	}
	if resp.Fields["valid"].GetBoolValue() {
		t.Error("expected sale of 5 to be rejected")
	}
	if got := resp.Fields["insufficient_ingredient"].GetStringValue(); got != "Моцарелла" {
		t.Errorf("insufficient_ingredient = %q, want Моцарелла", got)
	}
}

func TestGRPCError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{services.ErrNotFound, codes.NotFound},
		{services.ErrInvalidInput, codes.InvalidArgument},
		{services.ErrInsufficientStock, codes.FailedPrecondition},
		{services.ErrInUse, codes.FailedPrecondition},
		{services.ErrTenantSuspended, codes.PermissionDenied},
		{services.ErrUnavailable, codes.Unavailable},
		{context.Canceled, codes.Internal},
	}
	for _, tt := range tests {
		if got := status.Code(grpcError(tt.err)); got != tt.want {
			t.Errorf("grpcError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
