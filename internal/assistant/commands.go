package assistant

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pizzaria/internal/models"
)

// Причины UnrecognizedIntent
const (
	ReasonNotCommand     = "not_a_command"
	ReasonUnknownCommand = "unknown_command"
	ReasonMissingName    = "missing_name"
	ReasonMissingUnit    = "missing_unit"
	ReasonMissingValue   = "missing_value"
	ReasonBadNumber      = "bad_number"
	ReasonBadFormat      = "bad_format"
	ReasonHelp           = "help"
	ReasonLLMOutput      = "malformed_llm_output"
)

type commandHandler func(text string, args []string) Intent

// commands - команды на английском и португальском
var commands = map[string]commandHandler{
	"/add":        parseCreate,
	"/create":     parseCreate,
	"/new":        parseCreate,
	"/adicionar":  parseCreate,
	"/criar":      parseCreate,
	"/novo":       parseCreate,
	"/nova":       parseCreate,
	"/edit":       parseEdit,
	"/set":        parseEdit,
	"/update":     parseEdit,
	"/editar":     parseEdit,
	"/alterar":    parseEdit,
	"/entry":      parseEntry,
	"/receive":    parseEntry,
	"/entrada":    parseEntry,
	"/delete":     parseDelete,
	"/remove":     parseDelete,
	"/excluir":    parseDelete,
	"/remover":    parseDelete,
	"/apagar":     parseDelete,
	"/restore":    parseRestore,
	"/restaurar":  parseRestore,
	"/list":       parseList,
	"/listar":     parseList,
	"/low":        parseLow,
	"/alertas":    parseLow,
	"/capacity":   parseCapacity,
	"/capacidade": parseCapacity,
	"/stock":      parseStockQuery,
	"/status":     parseStockQuery,
	"/estoque":    parseStockQuery,
	"/import":     parseImport,
	"/importar":   parseImport,
	"/export":     parseExport,
	"/exportar":   parseExport,
	"/help":       parseHelp,
	"/ajuda":      parseHelp,
}

var entityWords = map[string]Entity{
	"ingredient":   EntityIngredient,
	"ingredients":  EntityIngredient,
	"ingrediente":  EntityIngredient,
	"ingredientes": EntityIngredient,
	"insumo":       EntityIngredient,
	"insumos":      EntityIngredient,
	"recipe":       EntityRecipe,
	"recipes":      EntityRecipe,
	"receita":      EntityRecipe,
	"receitas":     EntityRecipe,
}

var fieldWords = map[string]Field{
	"stock":     FieldStock,
	"estoque":   FieldStock,
	"min":       FieldMinStock,
	"min_stock": FieldMinStock,
	"minimo":    FieldMinStock,
	"cost":      FieldCost,
	"custo":     FieldCost,
	"price":     FieldPrice,
	"preco":     FieldPrice,
	"unit":      FieldUnit,
	"unidade":   FieldUnit,
	"category":  FieldCategory,
	"categoria": FieldCategory,
	"name":      FieldName,
	"nome":      FieldName,
}

// ParseCommand разбирает slash-команду без обращения к LLM.
// Любой текст, который не удалось разобрать, дает UnrecognizedIntent.
func ParseCommand(text string) Intent {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return UnrecognizedIntent{Text: text, Reason: ReasonNotCommand}
	}

	tokens := tokenize(trimmed)
	if len(tokens) == 0 {
		return UnrecognizedIntent{Text: text, Reason: ReasonUnknownCommand}
	}
	handler, ok := commands[fold(tokens[0])]
	if !ok {
		return UnrecognizedIntent{Text: text, Reason: ReasonUnknownCommand}
	}
	return handler(text, tokens[1:])
}

// tokenize делит строку по пробелам, фрагменты в двойных кавычках остаются одним токеном
func tokenize(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			if quoted {
				tokens = append(tokens, current.String())
				current.Reset()
			} else {
				flush()
			}
			quoted = !quoted
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// fold приводит слово к нижнему регистру без диакритики
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isNumber(s string) bool {
	_, ok := parseNumber(s)
	return ok
}

// takeEntity снимает необязательное слово сущности в начале аргументов
func takeEntity(args []string, def Entity) (Entity, []string) {
	if len(args) > 0 {
		if e, ok := entityWords[fold(args[0])]; ok {
			return e, args[1:]
		}
	}
	return def, args
}

func parseCreate(text string, args []string) Intent {
	entity, rest := takeEntity(args, EntityIngredient)
	if len(rest) == 0 {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingName}
	}
	if entity == EntityRecipe {
		return parseCreateRecipe(text, rest)
	}

	// /add ingredient <name...> <unit> [quantity] [min <value>]
	unitIdx := -1
	for i := 1; i < len(rest); i++ {
		if _, ok := models.ParseUnit(rest[i]); ok {
			unitIdx = i
			break
		}
	}
	if unitIdx < 0 {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingUnit}
	}

	intent := CreateIntent{
		Entity: EntityIngredient,
		Name:   strings.Join(rest[:unitIdx], " "),
		Unit:   rest[unitIdx],
	}
	tail := rest[unitIdx+1:]
	for i := 0; i < len(tail); i++ {
		if fieldWords[fold(tail[i])] == FieldMinStock {
			if i+1 >= len(tail) {
				return UnrecognizedIntent{Text: text, Reason: ReasonMissingValue}
			}
			v, ok := parseNumber(tail[i+1])
			if !ok {
				return UnrecognizedIntent{Text: text, Reason: ReasonBadNumber}
			}
			intent.MinStock = &v
			i++
			continue
		}
		v, ok := parseNumber(tail[i])
		if !ok || intent.Quantity != nil {
			return UnrecognizedIntent{Text: text, Reason: ReasonBadNumber}
		}
		intent.Quantity = &v
	}
	return intent
}

// /add recipe <name...> [pizza|esfiha] [price]
func parseCreateRecipe(text string, rest []string) Intent {
	intent := CreateIntent{Entity: EntityRecipe}
	nameEnd := len(rest)
	for i := 1; i < len(rest); i++ {
		if models.RecipeType(fold(rest[i])).IsValid() || isNumber(rest[i]) {
			nameEnd = i
			break
		}
	}
	intent.Name = strings.Join(rest[:nameEnd], " ")

	for _, tok := range rest[nameEnd:] {
		if t := models.RecipeType(fold(tok)); t.IsValid() && intent.RecipeType == "" {
			intent.RecipeType = string(t)
			continue
		}
		v, ok := parseNumber(tok)
		if !ok || intent.SalePrice != nil {
			return UnrecognizedIntent{Text: text, Reason: ReasonBadNumber}
		}
		intent.SalePrice = &v
	}
	return intent
}

// /set [entity] <name...> <field> <value...>
func parseEdit(text string, args []string) Intent {
	entity, rest := takeEntity(args, "")
	fieldIdx := -1
	for i := 1; i < len(rest); i++ {
		if _, ok := fieldWords[fold(rest[i])]; ok {
			fieldIdx = i
			break
		}
	}
	if len(rest) == 0 || fieldIdx < 0 {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingName}
	}

	field := fieldWords[fold(rest[fieldIdx])]
	value := strings.Join(rest[fieldIdx+1:], " ")
	if value == "" {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingValue}
	}
	if entity == "" {
		entity = EntityIngredient
		if field == FieldPrice {
			entity = EntityRecipe
		}
	}
	return EditIntent{
		Entity: entity,
		Name:   strings.Join(rest[:fieldIdx], " "),
		Field:  field,
		Value:  value,
	}
}

// /entry <name...> <quantity>
func parseEntry(text string, args []string) Intent {
	_, rest := takeEntity(args, EntityIngredient)
	if len(rest) < 2 {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingValue}
	}
	qty := rest[len(rest)-1]
	if !isNumber(qty) {
		return UnrecognizedIntent{Text: text, Reason: ReasonBadNumber}
	}
	return EditIntent{
		Entity: EntityIngredient,
		Name:   strings.Join(rest[:len(rest)-1], " "),
		Field:  FieldAddStock,
		Value:  qty,
	}
}

func parseDelete(text string, args []string) Intent {
	entity, rest := takeEntity(args, EntityIngredient)
	if len(rest) == 0 {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingName}
	}
	return DeleteIntent{Entity: entity, Name: strings.Join(rest, " ")}
}

func parseRestore(text string, args []string) Intent {
	entity, rest := takeEntity(args, EntityIngredient)
	if len(rest) == 0 {
		return UnrecognizedIntent{Text: text, Reason: ReasonMissingName}
	}
	return RestoreIntent{Entity: entity, Name: strings.Join(rest, " ")}
}

func parseList(text string, args []string) Intent {
	entity, rest := takeEntity(args, EntityIngredient)
	intent := ListIntent{Entity: entity}
	for _, tok := range rest {
		switch fold(tok) {
		case "low", "baixo", "baixos", "alertas", "alerts":
			intent.Entity = EntityIngredient
			intent.LowOnly = true
		default:
			return UnrecognizedIntent{Text: text, Reason: ReasonBadFormat}
		}
	}
	return intent
}

func parseLow(text string, args []string) Intent {
	return ListIntent{Entity: EntityIngredient, LowOnly: true}
}

func parseCapacity(text string, args []string) Intent {
	return QueryIntent{Topic: "capacity", Subject: strings.Join(args, " "), Question: text}
}

func parseStockQuery(text string, args []string) Intent {
	return QueryIntent{Topic: "stock", Subject: strings.Join(args, " "), Question: text}
}

func parseImport(text string, args []string) Intent {
	return ImportIntent{}
}

func parseExport(text string, args []string) Intent {
	format := "xlsx"
	if len(args) > 0 {
		format = fold(args[0])
	}
	if format != "xlsx" && format != "csv" {
		return UnrecognizedIntent{Text: text, Reason: ReasonBadFormat}
	}
	return ExportIntent{Format: format}
}

func parseHelp(text string, args []string) Intent {
	return UnrecognizedIntent{Text: text, Reason: ReasonHelp}
}
