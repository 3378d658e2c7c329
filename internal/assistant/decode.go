package assistant

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// llmEnvelope - JSON, который модель должна вернуть. Все поля необязательные.
type llmEnvelope struct {
	Action     string     `json:"action"`
	Entity     string     `json:"entity"`
	Name       string     `json:"name"`
	Unit       string     `json:"unit"`
	Quantity   flexNumber `json:"quantity"`
	MinStock   flexNumber `json:"min_stock"`
	RecipeType string     `json:"recipe_type"`
	Price      flexNumber `json:"price"`
	Field      string     `json:"field"`
	Value      flexString `json:"value"`
	LowOnly    bool       `json:"low_only"`
	Topic      string     `json:"topic"`
	Subject    string     `json:"subject"`
	Answer     string     `json:"answer"`
	Format     string     `json:"format"`
}

// flexNumber принимает число, строку с числом или null
type flexNumber struct {
	Value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		v, ok := parseNumber(s)
		if !ok {
			return &strconv.NumError{Func: "flexNumber", Num: s, Err: strconv.ErrSyntax}
		}
		n.Value = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// flexString принимает строку или число (значение поля в EditIntent)
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

var actionAliases = map[string]IntentKind{
	"create":   KindCreate,
	"add":      KindCreate,
	"criar":    KindCreate,
	"edit":     KindEdit,
	"update":   KindEdit,
	"set":      KindEdit,
	"entry":    KindEdit,
	"delete":   KindDelete,
	"remove":   KindDelete,
	"restore":  KindRestore,
	"list":     KindList,
	"query":    KindQuery,
	"question": KindQuery,
	"answer":   KindQuery,
	"import":   KindImport,
	"export":   KindExport,
}

// extractJSON возвращает первый сбалансированный JSON объект в тексте (модели любят обрамлять его пояснениями)
func extractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case c == '{' && !inString:
			depth++
		case c == '}' && !inString:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeIntent разбирает ответ модели. Все, что не удалось разобрать, дает UnrecognizedIntent.
func DecodeIntent(raw string) Intent {
	unrecognized := UnrecognizedIntent{Text: raw, Reason: ReasonLLMOutput}

	obj, ok := extractJSON(raw)
	if !ok {
		return unrecognized
	}
	var env llmEnvelope
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return unrecognized
	}

	kind, ok := actionAliases[fold(env.Action)]
	if !ok {
		return unrecognized
	}

	entity := decodeEntity(env.Entity)
	name := strings.TrimSpace(env.Name)

	switch kind {
	case KindCreate:
		if name == "" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonMissingName}
		}
		intent := CreateIntent{
			Entity:     entity,
			Name:       name,
			Unit:       strings.TrimSpace(env.Unit),
			Quantity:   env.Quantity.Value,
			MinStock:   env.MinStock.Value,
			RecipeType: fold(env.RecipeType),
			SalePrice:  env.Price.Value,
		}
		if entity == EntityIngredient && intent.Unit == "" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonMissingUnit}
		}
		return intent

	case KindEdit:
		field := Field(fold(env.Field))
		if fold(env.Action) == "entry" {
			field = FieldAddStock
		}
		if f, ok := fieldWords[string(field)]; ok {
			field = f
		}
		if !validField(field) {
			return UnrecognizedIntent{Text: raw, Reason: ReasonBadFormat}
		}
		value := strings.TrimSpace(string(env.Value))
		if value == "" && env.Quantity.Value != nil {
			value = strconv.FormatFloat(*env.Quantity.Value, 'f', -1, 64)
		}
		if name == "" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonMissingName}
		}
		if value == "" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonMissingValue}
		}
		return EditIntent{Entity: entity, Name: name, Field: field, Value: value}

	case KindDelete:
		if name == "" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonMissingName}
		}
		return DeleteIntent{Entity: entity, Name: name}

	case KindRestore:
		if name == "" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonMissingName}
		}
		return RestoreIntent{Entity: entity, Name: name}

	case KindList:
		return ListIntent{Entity: entity, LowOnly: env.LowOnly}

	case KindQuery:
		return QueryIntent{
			Topic:   fold(env.Topic),
			Subject: strings.TrimSpace(env.Subject),
			Answer:  strings.TrimSpace(env.Answer),
		}

	case KindImport:
		return ImportIntent{}

	case KindExport:
		format := fold(env.Format)
		if format == "" {
			format = "xlsx"
		}
		if format != "xlsx" && format != "csv" {
			return UnrecognizedIntent{Text: raw, Reason: ReasonBadFormat}
		}
		return ExportIntent{Format: format}
	}
	return unrecognized
}

func decodeEntity(raw string) Entity {
	if e, ok := entityWords[fold(raw)]; ok {
		return e
	}
	return EntityIngredient
}

func validField(f Field) bool {
	switch f {
	case FieldStock, FieldAddStock, FieldMinStock, FieldCost, FieldPrice, FieldUnit, FieldCategory, FieldName:
		return true
	}
	return false
}
