package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

// IngredientStore - операции со складом, доступные ассистенту
type IngredientStore interface {
	List(tenantID string, filter services.IngredientFilter) ([]services.IngredientView, error)
	LowStock(tenantID string) ([]services.IngredientView, error)
	FindByName(tenantID, name string) (*models.Ingredient, error)
	Create(tenantID string, in services.IngredientInput, performedBy string) (*models.Ingredient, error)
	Update(tenantID, id string, upd services.IngredientUpdate) (*models.Ingredient, error)
	Delete(tenantID, id string) error
	RestoreByName(tenantID, name string) (*models.Ingredient, error)
	AddStock(tenantID, ingredientID string, quantity float64, performedBy, notes string) (*models.Ingredient, error)
	AdjustStock(tenantID, ingredientID string, newStock float64, performedBy, notes string) (*models.Ingredient, error)
}

// RecipeStore - операции с рецептами, доступные ассистенту
type RecipeStore interface {
	List(tenantID string, includeDeleted bool) ([]models.Recipe, error)
	FindByName(tenantID, name string) (*models.Recipe, error)
	Create(tenantID string, in services.RecipeInput) (*models.Recipe, error)
	Update(tenantID, id string, in services.RecipeInput) (*models.Recipe, error)
	Delete(tenantID, id string) error
	RestoreByName(tenantID, name string) (*models.Recipe, error)
	CapacityOverview(tenantID string) ([]services.RecipeCapacity, error)
}

// Exporter - выгрузка справочника во внешнее хранилище
type Exporter interface {
	UploadEnabled() bool
	UploadExport(ctx context.Context, tenantID string, format services.ExportFormat) (string, error)
}

// Request - кто и от имени какой пиццерии пишет ассистенту
type Request struct {
	TenantID string
	UserID   string
	Role     models.UserRole
}

// Reply - ответ ассистента
type Reply struct {
	Text    string      `json:"text"`
	Intent  IntentKind  `json:"intent"`
	Changed bool        `json:"changed"`
	Data    interface{} `json:"data,omitempty"`
}

// Executor применяет намерения к складу пиццерии
type Executor struct {
	ingredients IngredientStore
	recipes     RecipeStore
	exporter    Exporter
}

// NewExecutor создает исполнителя намерений
func NewExecutor(ingredients IngredientStore, recipes RecipeStore) *Executor {
	return &Executor{ingredients: ingredients, recipes: recipes}
}

// SetExporter включает выгрузку из чата
func (e *Executor) SetExporter(exporter Exporter) {
	e.exporter = exporter
}

const helpText = `Команды:
/add ingredient <название> <ед.> [количество] [min <минимум>]
/add recipe <название> [pizza|esfiha] [цена]
/entry <ингредиент> <количество>
/set <название> <stock|min|cost|price|unit|category|name> <значение>
/delete [ingredient|recipe] <название>
/restore [ingredient|recipe] <название>
/list [ingredients|recipes|low]
/capacity [рецепт]
/export [xlsx|csv]`

// Execute выполняет намерение. Ошибки сервисов превращаются в текст ответа.
func (e *Executor) Execute(ctx context.Context, req Request, intent Intent) Reply {
	if intent == nil {
		intent = UnrecognizedIntent{Reason: ReasonLLMOutput}
	}
	if Mutates(intent) && !req.Role.CanManageStock() {
		return Reply{Intent: intent.Kind(), Text: "Недостаточно прав: изменять склад могут владелец и управляющий."}
	}

	var (
		reply Reply
		err   error
	)
	switch in := intent.(type) {
	case CreateIntent:
		reply, err = e.create(req, in)
	case EditIntent:
		reply, err = e.edit(req, in)
	case DeleteIntent:
		reply, err = e.delete(req, in)
	case RestoreIntent:
		reply, err = e.restore(req, in)
	case ListIntent:
		reply, err = e.list(req, in)
	case QueryIntent:
		reply, err = e.query(req, in)
	case ImportIntent:
		reply = Reply{Text: "Загрузите файл CSV или XLSX через импорт ингредиентов: колонки name, unit, current_stock, min_stock, cost_per_unit."}
	case ExportIntent:
		reply, err = e.export(ctx, req, in)
	case UnrecognizedIntent:
		reply = unrecognizedReply(in)
	default:
		reply = unrecognizedReply(UnrecognizedIntent{Reason: ReasonLLMOutput})
	}

	if err != nil {
		reply = Reply{Text: describeError(err)}
	}
	reply.Intent = intent.Kind()
	return reply
}

func (e *Executor) create(req Request, in CreateIntent) (Reply, error) {
	if in.Entity == EntityRecipe {
		input := services.RecipeInput{Name: in.Name, Type: models.RecipeType(in.RecipeType)}
		if in.SalePrice != nil {
			input.SalePrice = *in.SalePrice
		}
		recipe, err := e.recipes.Create(req.TenantID, input)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			Text:    fmt.Sprintf("Рецепт «%s» (%s) создан. Добавьте ингредиенты в технологическую карту.", recipe.Name, recipe.Type),
			Changed: true,
			Data:    recipe,
		}, nil
	}

	input := services.IngredientInput{Name: in.Name, Unit: in.Unit}
	if in.Quantity != nil {
		input.CurrentStock = *in.Quantity
	}
	if in.MinStock != nil {
		input.MinStock = *in.MinStock
	}
	ing, err := e.ingredients.Create(req.TenantID, input, req.UserID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:    fmt.Sprintf("Ингредиент «%s» создан: %s %s.", ing.Name, formatAmount(ing.CurrentStock), ing.Unit),
		Changed: true,
		Data:    ing,
	}, nil
}

func (e *Executor) edit(req Request, in EditIntent) (Reply, error) {
	if in.Entity == EntityRecipe {
		return e.editRecipe(req, in)
	}

	ing, err := e.ingredients.FindByName(req.TenantID, in.Name)
	if err != nil {
		return Reply{}, notFoundAs(err, "ингредиент", in.Name)
	}

	var updated *models.Ingredient
	switch in.Field {
	case FieldStock, FieldAddStock:
		v, ok := parseNumber(in.Value)
		if !ok {
			return Reply{}, fmt.Errorf("%w: %q не число", services.ErrInvalidInput, in.Value)
		}
		if in.Field == FieldAddStock {
			updated, err = e.ingredients.AddStock(req.TenantID, ing.ID, v, req.UserID, "Поступление из чата")
		} else {
			updated, err = e.ingredients.AdjustStock(req.TenantID, ing.ID, v, req.UserID, "Инвентаризация из чата")
		}
	case FieldMinStock, FieldCost, FieldPrice:
		v, ok := parseNumber(in.Value)
		if !ok {
			return Reply{}, fmt.Errorf("%w: %q не число", services.ErrInvalidInput, in.Value)
		}
		upd := services.IngredientUpdate{}
		if in.Field == FieldMinStock {
			upd.MinStock = &v
		} else {
			upd.CostPerUnit = &v
		}
		updated, err = e.ingredients.Update(req.TenantID, ing.ID, upd)
	case FieldUnit:
		updated, err = e.ingredients.Update(req.TenantID, ing.ID, services.IngredientUpdate{Unit: &in.Value})
	case FieldCategory:
		updated, err = e.ingredients.Update(req.TenantID, ing.ID, services.IngredientUpdate{Category: &in.Value})
	case FieldName:
		updated, err = e.ingredients.Update(req.TenantID, ing.ID, services.IngredientUpdate{Name: &in.Value})
	default:
		return Reply{}, fmt.Errorf("%w: поле %s не поддерживается", services.ErrInvalidInput, in.Field)
	}
	if err != nil {
		return Reply{}, err
	}

	view := services.NewIngredientView(*updated)
	return Reply{
		Text: fmt.Sprintf("%s «%s»: остаток %s %s, минимум %s (%s).", view.StatusIcon, updated.Name,
			formatAmount(updated.CurrentStock), updated.Unit, formatAmount(updated.MinStock), view.StatusLabel),
		Changed: true,
		Data:    view,
	}, nil
}

func (e *Executor) editRecipe(req Request, in EditIntent) (Reply, error) {
	recipe, err := e.recipes.FindByName(req.TenantID, in.Name)
	if err != nil {
		return Reply{}, notFoundAs(err, "рецепт", in.Name)
	}

	input := recipeInputFrom(recipe)
	switch in.Field {
	case FieldPrice, FieldCost:
		v, ok := parseNumber(in.Value)
		if !ok {
			return Reply{}, fmt.Errorf("%w: %q не число", services.ErrInvalidInput, in.Value)
		}
		input.SalePrice = v
	case FieldName:
		input.Name = in.Value
	case FieldCategory:
		input.Type = models.RecipeType(fold(in.Value))
	default:
		return Reply{}, fmt.Errorf("%w: у рецепта можно изменить цену, название или вид", services.ErrInvalidInput)
	}

	updated, err := e.recipes.Update(req.TenantID, recipe.ID, input)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:    fmt.Sprintf("Рецепт «%s» обновлен: %s, цена %s.", updated.Name, updated.Type, formatAmount(updated.SalePrice)),
		Changed: true,
		Data:    updated,
	}, nil
}

// recipeInputFrom собирает полный RecipeInput из сохраненного рецепта (Update заменяет строки целиком)
func recipeInputFrom(r *models.Recipe) services.RecipeInput {
	input := services.RecipeInput{
		Name:        r.Name,
		Type:        r.Type,
		Description: r.Description,
		SalePrice:   r.SalePrice,
	}
	for _, ri := range r.Ingredients {
		input.Ingredients = append(input.Ingredients, services.RecipeIngredientInput{
			IngredientID:   ri.IngredientID,
			QuantityNeeded: ri.QuantityNeeded,
		})
	}
	return input
}

func (e *Executor) delete(req Request, in DeleteIntent) (Reply, error) {
	if in.Entity == EntityRecipe {
		recipe, err := e.recipes.FindByName(req.TenantID, in.Name)
		if err != nil {
			return Reply{}, notFoundAs(err, "рецепт", in.Name)
		}
		if err := e.recipes.Delete(req.TenantID, recipe.ID); err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Рецепт «%s» удален. Восстановить: /restore recipe %s", recipe.Name, recipe.Name), Changed: true}, nil
	}

	ing, err := e.ingredients.FindByName(req.TenantID, in.Name)
	if err != nil {
		return Reply{}, notFoundAs(err, "ингредиент", in.Name)
	}
	if err := e.ingredients.Delete(req.TenantID, ing.ID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Ингредиент «%s» удален. Восстановить: /restore %s", ing.Name, ing.Name), Changed: true}, nil
}

func (e *Executor) restore(req Request, in RestoreIntent) (Reply, error) {
	if in.Entity == EntityRecipe {
		recipe, err := e.recipes.RestoreByName(req.TenantID, in.Name)
		if err != nil {
			return Reply{}, notFoundAs(err, "удаленный рецепт", in.Name)
		}
		return Reply{Text: fmt.Sprintf("Рецепт «%s» восстановлен.", recipe.Name), Changed: true, Data: recipe}, nil
	}
	ing, err := e.ingredients.RestoreByName(req.TenantID, in.Name)
	if err != nil {
		return Reply{}, notFoundAs(err, "удаленный ингредиент", in.Name)
	}
	return Reply{Text: fmt.Sprintf("Ингредиент «%s» восстановлен.", ing.Name), Changed: true, Data: ing}, nil
}

func (e *Executor) list(req Request, in ListIntent) (Reply, error) {
	if in.Entity == EntityRecipe {
		recipes, err := e.recipes.List(req.TenantID, false)
		if err != nil {
			return Reply{}, err
		}
		if len(recipes) == 0 {
			return Reply{Text: "Рецептов пока нет."}, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Рецептов: %d\n", len(recipes))
		for _, r := range recipes {
			fmt.Fprintf(&b, "• %s (%s): %s, можно приготовить %d\n", r.Name, r.Type, formatAmount(r.SalePrice), r.Capacity)
		}
		return Reply{Text: strings.TrimRight(b.String(), "\n"), Data: recipes}, nil
	}

	var (
		views []services.IngredientView
		err   error
	)
	if in.LowOnly {
		views, err = e.ingredients.LowStock(req.TenantID)
	} else {
		views, err = e.ingredients.List(req.TenantID, services.IngredientFilter{})
	}
	if err != nil {
		return Reply{}, err
	}
	if len(views) == 0 {
		if in.LowOnly {
			return Reply{Text: "🟢 Все остатки в норме."}, nil
		}
		return Reply{Text: "Ингредиентов пока нет."}, nil
	}
	return Reply{Text: renderIngredients(views), Data: views}, nil
}

func (e *Executor) query(req Request, in QueryIntent) (Reply, error) {
	if in.Answer != "" {
		return Reply{Text: in.Answer}, nil
	}

	if in.Topic == "capacity" {
		overview, err := e.recipes.CapacityOverview(req.TenantID)
		if err != nil {
			return Reply{}, err
		}
		subject := fold(in.Subject)
		var b strings.Builder
		matched := 0
		for _, c := range overview {
			if subject != "" && !strings.Contains(fold(c.RecipeName), subject) {
				continue
			}
			matched++
			limiting := "нет ингредиентов"
			if c.LimitingIngredientName != nil {
				limiting = "ограничивает " + *c.LimitingIngredientName
			}
			fmt.Fprintf(&b, "• %s: %d шт. (%s)\n", c.RecipeName, c.Capacity, limiting)
		}
		if matched == 0 {
			return Reply{Text: "Рецепты не найдены."}, nil
		}
		return Reply{Text: strings.TrimRight(b.String(), "\n"), Data: overview}, nil
	}

	low, err := e.ingredients.LowStock(req.TenantID)
	if err != nil {
		return Reply{}, err
	}
	if len(low) == 0 {
		return Reply{Text: "🟢 Все остатки в норме."}, nil
	}
	return Reply{Text: fmt.Sprintf("Требуют внимания: %d\n%s", len(low), renderIngredients(low)), Data: low}, nil
}

func (e *Executor) export(ctx context.Context, req Request, in ExportIntent) (Reply, error) {
	if e.exporter == nil || !e.exporter.UploadEnabled() {
		return Reply{Text: fmt.Sprintf("Скачайте выгрузку через экспорт ингредиентов (format=%s).", in.Format)}, nil
	}
	url, err := e.exporter.UploadExport(ctx, req.TenantID, services.ExportFormat(in.Format))
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Выгрузка готова: " + url, Data: map[string]string{"url": url}}, nil
}

func unrecognizedReply(in UnrecognizedIntent) Reply {
	switch in.Reason {
	case ReasonHelp, ReasonNotCommand, ReasonUnknownCommand:
		return Reply{Text: helpText}
	case ReasonMissingName:
		return Reply{Text: "Не указано название.\n" + helpText}
	case ReasonMissingUnit:
		return Reply{Text: "Не указана единица измерения (kg, g, L, ml, un)."}
	case ReasonMissingValue, ReasonBadNumber:
		return Reply{Text: "Не удалось разобрать значение. Пример: /entry Mussarela 5"}
	case ReasonBadFormat:
		return Reply{Text: "Неизвестный параметр команды.\n" + helpText}
	}
	return Reply{Text: "Не понял запрос. Попробуйте переформулировать или используйте /help."}
}

func renderIngredients(views []services.IngredientView) string {
	var b strings.Builder
	for _, v := range views {
		fmt.Fprintf(&b, "%s %s: %s %s (мин. %s)\n", v.StatusIcon, v.Name, formatAmount(v.CurrentStock), v.Unit, formatAmount(v.MinStock))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAmount(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func notFoundAs(err error, what, name string) error {
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("%w: %s «%s»", services.ErrNotFound, what, name)
	}
	return err
}

func describeError(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "Не найдено: " + strings.TrimPrefix(err.Error(), services.ErrNotFound.Error()+": ")
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrDuplicate), errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrInUse):
		return "⚠️ " + err.Error()
	case errors.Is(err, services.ErrUnavailable):
		return "Сервис временно недоступен."
	}
	return "❌ Не удалось выполнить действие."
}
