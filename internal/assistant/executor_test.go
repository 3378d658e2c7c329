package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

// memoryIngredients - хранилище ингредиентов одной пиццерии в памяти
type memoryIngredients struct {
	items   map[string]*models.Ingredient
	deleted map[string]*models.Ingredient
	nextID  int
}

func newMemoryIngredients(items ...models.Ingredient) *memoryIngredients {
	m := &memoryIngredients{items: map[string]*models.Ingredient{}, deleted: map[string]*models.Ingredient{}}
	for i := range items {
		ing := items[i]
		m.nextID++
		ing.ID = fmt.Sprintf("ing-%d", m.nextID)
		m.items[strings.ToLower(ing.Name)] = &ing
	}
	return m
}

func (m *memoryIngredients) byID(id string) *models.Ingredient {
	for _, ing := range m.items {
		if ing.ID == id {
			return ing
		}
	}
	return nil
}

func (m *memoryIngredients) List(tenantID string, filter services.IngredientFilter) ([]services.IngredientView, error) {
	var views []services.IngredientView
	for _, ing := range m.items {
		views = append(views, services.NewIngredientView(*ing))
	}
	return views, nil
}

func (m *memoryIngredients) LowStock(tenantID string) ([]services.IngredientView, error) {
	all, _ := m.List(tenantID, services.IngredientFilter{})
	return services.FilterNeedsAttention(all), nil
}

func (m *memoryIngredients) FindByName(tenantID, name string) (*models.Ingredient, error) {
	if ing, ok := m.items[strings.ToLower(name)]; ok {
		return ing, nil
	}
	return nil, services.ErrNotFound
}

func (m *memoryIngredients) Create(tenantID string, in services.IngredientInput, performedBy string) (*models.Ingredient, error) {
	unit, ok := models.ParseUnit(in.Unit)
	if !ok {
		return nil, fmt.Errorf("%w: неизвестная единица %q", services.ErrInvalidInput, in.Unit)
	}
	if _, exists := m.items[strings.ToLower(in.Name)]; exists {
		return nil, services.ErrDuplicate
	}
	m.nextID++
	ing := &models.Ingredient{
		ID:           fmt.Sprintf("ing-%d", m.nextID),
		TenantID:     tenantID,
		Name:         in.Name,
		Unit:         unit,
		CurrentStock: in.CurrentStock,
		MinStock:     in.MinStock,
	}
	m.items[strings.ToLower(in.Name)] = ing
	return ing, nil
}

func (m *memoryIngredients) Update(tenantID, id string, upd services.IngredientUpdate) (*models.Ingredient, error) {
	ing := m.byID(id)
	if ing == nil {
		return nil, services.ErrNotFound
	}
	if upd.MinStock != nil {
		ing.MinStock = *upd.MinStock
	}
	if upd.CostPerUnit != nil {
		ing.CostPerUnit = *upd.CostPerUnit
	}
	if upd.Category != nil {
		ing.Category = *upd.Category
	}
	return ing, nil
}

func (m *memoryIngredients) Delete(tenantID, id string) error {
	ing := m.byID(id)
	if ing == nil {
		return services.ErrNotFound
	}
	key := strings.ToLower(ing.Name)
	delete(m.items, key)
	m.deleted[key] = ing
	return nil
}

func (m *memoryIngredients) RestoreByName(tenantID, name string) (*models.Ingredient, error) {
	key := strings.ToLower(name)
	ing, ok := m.deleted[key]
	if !ok {
		return nil, services.ErrNotFound
	}
	delete(m.deleted, key)
	m.items[key] = ing
	return ing, nil
}

func (m *memoryIngredients) AddStock(tenantID, ingredientID string, quantity float64, performedBy, notes string) (*models.Ingredient, error) {
	ing := m.byID(ingredientID)
	if ing == nil {
		return nil, services.ErrNotFound
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: количество поступления должно быть больше нуля", services.ErrInvalidInput)
	}
	ing.CurrentStock += quantity
	return ing, nil
}

func (m *memoryIngredients) AdjustStock(tenantID, ingredientID string, newStock float64, performedBy, notes string) (*models.Ingredient, error) {
	ing := m.byID(ingredientID)
	if ing == nil {
		return nil, services.ErrNotFound
	}
	ing.CurrentStock = newStock
	return ing, nil
}

type memoryRecipes struct {
	recipes  []models.Recipe
	overview []services.RecipeCapacity
}

func (m *memoryRecipes) List(tenantID string, includeDeleted bool) ([]models.Recipe, error) {
	return m.recipes, nil
}

func (m *memoryRecipes) FindByName(tenantID, name string) (*models.Recipe, error) {
	for i := range m.recipes {
		if strings.EqualFold(m.recipes[i].Name, name) {
			return &m.recipes[i], nil
		}
	}
	return nil, services.ErrNotFound
}

func (m *memoryRecipes) Create(tenantID string, in services.RecipeInput) (*models.Recipe, error) {
	if in.Type == "" {
		in.Type = models.RecipePizza
	}
	r := models.Recipe{ID: fmt.Sprintf("rec-%d", len(m.recipes)+1), TenantID: tenantID, Name: in.Name, Type: in.Type, SalePrice: in.SalePrice}
	m.recipes = append(m.recipes, r)
	return &r, nil
}

func (m *memoryRecipes) Update(tenantID, id string, in services.RecipeInput) (*models.Recipe, error) {
	for i := range m.recipes {
		if m.recipes[i].ID == id {
			m.recipes[i].Name = in.Name
			m.recipes[i].Type = in.Type
			m.recipes[i].SalePrice = in.SalePrice
			return &m.recipes[i], nil
		}
	}
	return nil, services.ErrNotFound
}

func (m *memoryRecipes) Delete(tenantID, id string) error {
	for i := range m.recipes {
		if m.recipes[i].ID == id {
			m.recipes = append(m.recipes[:i], m.recipes[i+1:]...)
			return nil
		}
	}
	return services.ErrNotFound
}

func (m *memoryRecipes) RestoreByName(tenantID, name string) (*models.Recipe, error) {
	return nil, services.ErrNotFound
}

func (m *memoryRecipes) CapacityOverview(tenantID string) ([]services.RecipeCapacity, error) {
	return m.overview, nil
}

type fakeExporter struct {
	enabled bool
	format  services.ExportFormat
}

func (f *fakeExporter) UploadEnabled() bool { return f.enabled }

func (f *fakeExporter) UploadExport(ctx context.Context, tenantID string, format services.ExportFormat) (string, error) {
	f.format = format
	return "https://cdn.example.com/" + tenantID + "/ingredients." + string(format), nil
}

func ownerRequest() Request {
	return Request{TenantID: "tenant-1", UserID: "user-1", Role: models.RoleOwner}
}

func newTestExecutor() (*Executor, *memoryIngredients, *memoryRecipes) {
	ingredients := newMemoryIngredients(
		models.Ingredient{Name: "Mussarela", Unit: models.UnitKilogram, CurrentStock: 2, MinStock: 5},
		models.Ingredient{Name: "Farinha", Unit: models.UnitKilogram, CurrentStock: 20, MinStock: 5},
	)
	limiting := "Mussarela"
	recipes := &memoryRecipes{
		recipes: []models.Recipe{{ID: "rec-1", Name: "Margherita", Type: models.RecipePizza, SalePrice: 45, Capacity: 8}},
		overview: []services.RecipeCapacity{
			{RecipeID: "rec-1", RecipeName: "Margherita", Type: "pizza", CapacityResult: inventory.CapacityResult{Capacity: 8, LimitingIngredientName: &limiting}},
		},
	}
	return NewExecutor(ingredients, recipes), ingredients, recipes
}

func TestExecutorCreateIngredient(t *testing.T) {
	exec, ingredients, _ := newTestExecutor()
	qty := 3.0

	reply := exec.Execute(context.Background(), ownerRequest(), CreateIntent{Entity: EntityIngredient, Name: "Tomate", Unit: "kg", Quantity: &qty})
	if !reply.Changed || reply.Intent != KindCreate {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if _, err := ingredients.FindByName("tenant-1", "tomate"); err != nil {
		t.Fatalf("ingredient not created: %v", err)
	}
	if !strings.Contains(reply.Text, "Tomate") || !strings.Contains(reply.Text, "3 kg") {
		t.Errorf("reply text = %q", reply.Text)
	}
}

func TestExecutorStaffCannotMutate(t *testing.T) {
	exec, ingredients, _ := newTestExecutor()
	req := Request{TenantID: "tenant-1", UserID: "user-2", Role: models.RoleStaff}

	reply := exec.Execute(context.Background(), req, DeleteIntent{Entity: EntityIngredient, Name: "Mussarela"})
	if reply.Changed {
		t.Fatal("staff must not change stock")
	}
	if _, err := ingredients.FindByName("tenant-1", "Mussarela"); err != nil {
		t.Error("ingredient was deleted by staff")
	}

	// Чтение доступно всем
	reply = exec.Execute(context.Background(), req, ListIntent{Entity: EntityIngredient})
	if !strings.Contains(reply.Text, "Farinha") {
		t.Errorf("list reply = %q", reply.Text)
	}
}

func TestExecutorStockEntryAndAdjust(t *testing.T) {
	exec, ingredients, _ := newTestExecutor()

	reply := exec.Execute(context.Background(), ownerRequest(), EditIntent{Entity: EntityIngredient, Name: "mussarela", Field: FieldAddStock, Value: "4,5"})
	if !reply.Changed {
		t.Fatalf("entry failed: %q", reply.Text)
	}
	ing, _ := ingredients.FindByName("tenant-1", "Mussarela")
	if ing.CurrentStock != 6.5 {
		t.Errorf("stock after entry = %v, want 6.5", ing.CurrentStock)
	}

	exec.Execute(context.Background(), ownerRequest(), EditIntent{Entity: EntityIngredient, Name: "Mussarela", Field: FieldStock, Value: "1"})
	if ing.CurrentStock != 1 {
		t.Errorf("stock after adjust = %v, want 1", ing.CurrentStock)
	}

	reply = exec.Execute(context.Background(), ownerRequest(), EditIntent{Entity: EntityIngredient, Name: "Mussarela", Field: FieldMinStock, Value: "abc"})
	if reply.Changed || !strings.HasPrefix(reply.Text, "⚠️") {
		t.Errorf("bad number reply = %+v", reply)
	}
}

func TestExecutorDeleteAndRestore(t *testing.T) {
	exec, ingredients, _ := newTestExecutor()

	reply := exec.Execute(context.Background(), ownerRequest(), DeleteIntent{Entity: EntityIngredient, Name: "Farinha"})
	if !reply.Changed || !strings.Contains(reply.Text, "/restore Farinha") {
		t.Fatalf("delete reply = %+v", reply)
	}
	if _, err := ingredients.FindByName("tenant-1", "Farinha"); err == nil {
		t.Fatal("ingredient still listed after delete")
	}

	reply = exec.Execute(context.Background(), ownerRequest(), RestoreIntent{Entity: EntityIngredient, Name: "Farinha"})
	if !reply.Changed {
		t.Fatalf("restore reply = %+v", reply)
	}
	if _, err := ingredients.FindByName("tenant-1", "Farinha"); err != nil {
		t.Error("ingredient not restored")
	}
}

func TestExecutorNotFound(t *testing.T) {
	exec, _, _ := newTestExecutor()

	reply := exec.Execute(context.Background(), ownerRequest(), DeleteIntent{Entity: EntityRecipe, Name: "Calabresa"})
	if reply.Changed {
		t.Fatal("unexpected change")
	}
	if !strings.HasPrefix(reply.Text, "Не найдено") || !strings.Contains(reply.Text, "Calabresa") {
		t.Errorf("reply text = %q", reply.Text)
	}
}

func TestExecutorLowStockAndCapacity(t *testing.T) {
	exec, _, _ := newTestExecutor()

	reply := exec.Execute(context.Background(), ownerRequest(), ListIntent{Entity: EntityIngredient, LowOnly: true})
	if !strings.Contains(reply.Text, "Mussarela") || strings.Contains(reply.Text, "Farinha") {
		t.Errorf("low stock reply = %q", reply.Text)
	}

	reply = exec.Execute(context.Background(), ownerRequest(), QueryIntent{Topic: "capacity", Subject: "marg"})
	if !strings.Contains(reply.Text, "Margherita: 8 шт.") || !strings.Contains(reply.Text, "ограничивает Mussarela") {
		t.Errorf("capacity reply = %q", reply.Text)
	}

	reply = exec.Execute(context.Background(), ownerRequest(), QueryIntent{Topic: "capacity", Subject: "calabresa"})
	if reply.Text != "Рецепты не найдены." {
		t.Errorf("unknown recipe reply = %q", reply.Text)
	}
}

func TestExecutorExport(t *testing.T) {
	exec, _, _ := newTestExecutor()

	reply := exec.Execute(context.Background(), ownerRequest(), ExportIntent{Format: "csv"})
	if !strings.Contains(reply.Text, "format=csv") {
		t.Errorf("export without storage = %q", reply.Text)
	}

	exporter := &fakeExporter{enabled: true}
	exec.SetExporter(exporter)
	reply = exec.Execute(context.Background(), ownerRequest(), ExportIntent{Format: "xlsx"})
	if exporter.format != services.ExportFormat("xlsx") {
		t.Errorf("exported format = %q", exporter.format)
	}
	if !strings.Contains(reply.Text, "https://cdn.example.com/tenant-1/ingredients.xlsx") {
		t.Errorf("export reply = %q", reply.Text)
	}
}

func TestExecutorNilIntent(t *testing.T) {
	exec, _, _ := newTestExecutor()

	reply := exec.Execute(context.Background(), ownerRequest(), nil)
	if reply.Intent != KindUnrecognized {
		t.Errorf("intent = %q, want %q", reply.Intent, KindUnrecognized)
	}
	if reply.Text == "" {
		t.Error("empty reply for nil intent")
	}
}
