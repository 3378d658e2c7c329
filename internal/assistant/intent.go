package assistant

// IntentKind - вид намерения пользователя
type IntentKind string

const (
	KindCreate       IntentKind = "create"
	KindEdit         IntentKind = "edit"
	KindDelete       IntentKind = "delete"
	KindRestore      IntentKind = "restore"
	KindList         IntentKind = "list"
	KindQuery        IntentKind = "query"
	KindImport       IntentKind = "import"
	KindExport       IntentKind = "export"
	KindUnrecognized IntentKind = "unrecognized"
)

// Entity - объект, к которому относится команда
type Entity string

const (
	EntityIngredient Entity = "ingredient"
	EntityRecipe     Entity = "recipe"
)

// Field - изменяемое поле в EditIntent
type Field string

const (
	FieldStock    Field = "stock"     // Инвентаризация: абсолютное значение
	FieldAddStock Field = "add_stock" // Поступление: прибавить к остатку
	FieldMinStock Field = "min_stock"
	FieldCost     Field = "cost"
	FieldPrice    Field = "price"
	FieldUnit     Field = "unit"
	FieldCategory Field = "category"
	FieldName     Field = "name"
)

// Intent - закрытый набор намерений. Реализации только в этом пакете.
type Intent interface {
	Kind() IntentKind
	isIntent()
}

// CreateIntent - создать ингредиент или рецепт
type CreateIntent struct {
	Entity     Entity
	Name       string
	Unit       string
	Quantity   *float64
	MinStock   *float64
	RecipeType string
	SalePrice  *float64
}

// EditIntent - изменить одно поле ингредиента или рецепта
type EditIntent struct {
	Entity Entity
	Name   string
	Field  Field
	Value  string
}

// DeleteIntent - мягко удалить
type DeleteIntent struct {
	Entity Entity
	Name   string
}

// RestoreIntent - восстановить удаленное
type RestoreIntent struct {
	Entity Entity
	Name   string
}

// ListIntent - показать список. LowOnly оставляет ингредиенты, требующие внимания.
type ListIntent struct {
	Entity  Entity
	LowOnly bool
}

// QueryIntent - вопрос о складе. Answer заполняет LLM, если ответила сама.
type QueryIntent struct {
	Topic    string
	Subject  string
	Question string
	Answer   string
}

// ImportIntent - пользователь хочет загрузить файл
type ImportIntent struct{}

// ExportIntent - выгрузка справочника
type ExportIntent struct {
	Format string
}

// UnrecognizedIntent - текст не удалось разобрать. Никогда не nil вместо Intent.
type UnrecognizedIntent struct {
	Text   string
	Reason string
}

func (CreateIntent) Kind() IntentKind       { return KindCreate }
func (EditIntent) Kind() IntentKind         { return KindEdit }
func (DeleteIntent) Kind() IntentKind       { return KindDelete }
func (RestoreIntent) Kind() IntentKind      { return KindRestore }
func (ListIntent) Kind() IntentKind         { return KindList }
func (QueryIntent) Kind() IntentKind        { return KindQuery }
func (ImportIntent) Kind() IntentKind       { return KindImport }
func (ExportIntent) Kind() IntentKind       { return KindExport }
func (UnrecognizedIntent) Kind() IntentKind { return KindUnrecognized }

func (CreateIntent) isIntent()       {}
func (EditIntent) isIntent()         {}
func (DeleteIntent) isIntent()       {}
func (RestoreIntent) isIntent()      {}
func (ListIntent) isIntent()         {}
func (QueryIntent) isIntent()        {}
func (ImportIntent) isIntent()       {}
func (ExportIntent) isIntent()       {}
func (UnrecognizedIntent) isIntent() {}

// Mutates - меняет ли намерение данные пиццерии
func Mutates(i Intent) bool {
	switch i.(type) {
	case CreateIntent, EditIntent, DeleteIntent, RestoreIntent, ImportIntent:
		return true
	}
	return false
}
