package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"pizzaria/internal/models"
)

func TestParseIngredientFileSemicolonCSV(t *testing.T) {
	data := "Nome;Unidade;Estoque;Estoque Mínimo;Custo\n" +
		"Mussarela;kg;12,5;2;38,90\n" +
		";;;;\n" +
		"Tomate;kg;abc;1;2\n" +
		"Manjericão;un;1.200,5;;\n"

	rows, rowErrs, err := ParseIngredientFile("estoque.csv", []byte(data))
	if err != nil {
		t.Fatalf("ParseIngredientFile failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}

	cheese := rows[0]
	if cheese.Name != "Mussarela" || cheese.Unit != "kg" || cheese.Line != 2 {
		t.Errorf("unexpected row %+v", cheese)
	}
	if cheese.CurrentStock == nil || *cheese.CurrentStock != 12.5 {
		t.Errorf("current stock not parsed: %v", cheese.CurrentStock)
	}
	if cheese.CostPerUnit == nil || *cheese.CostPerUnit != 38.9 {
		t.Errorf("cost not parsed: %v", cheese.CostPerUnit)
	}

	basil := rows[1]
	if basil.CurrentStock == nil || *basil.CurrentStock != 1200.5 {
		t.Errorf("thousands separator not handled: %v", basil.CurrentStock)
	}
	if basil.MinStock != nil || basil.CostPerUnit != nil {
		t.Errorf("empty cells must stay nil: %+v", basil)
	}

	if len(rowErrs) != 1 || rowErrs[0].Line != 4 || rowErrs[0].Name != "Tomate" {
		t.Errorf("unexpected row errors %+v", rowErrs)
	}
}

func TestParseIngredientFileWindows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("name,unit,stock\nAçúcar,kg,3\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	rows, _, err := ParseIngredientFile("legacy.csv", []byte(encoded))
	if err != nil {
		t.Fatalf("ParseIngredientFile failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Açúcar" {
		t.Fatalf("expected Açúcar, got %+v", rows)
	}
}

func TestParseIngredientFileRussianHeaders(t *testing.T) {
	data := "\xef\xbb\xbfНаименование,Ед. изм.,Остаток,Цена\nМука,кг,25,\"1,5\"\n"
	rows, _, err := ParseIngredientFile("склад.csv", []byte(data))
	if err != nil {
		t.Fatalf("ParseIngredientFile failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Мука" || rows[0].Unit != "кг" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[0].CostPerUnit == nil || *rows[0].CostPerUnit != 1.5 {
		t.Errorf("cost = %v, want 1.5", rows[0].CostPerUnit)
	}
}

func TestParseIngredientFileRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"unsupported extension", "estoque.pdf", "name\nx\n"},
		{"empty file", "estoque.csv", ""},
		{"no name column", "estoque.csv", "unit,stock\nkg,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseIngredientFile(tt.filename, []byte(tt.data)); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestParseLocalizedNumber(t *testing.T) {
	tests := map[string]float64{
		"12":        12,
		"0,25":      0.25,
		"0.25":      0.25,
		"1.234,5":   1234.5,
		"1,234.5":   1234.5,
		" 3 500,75": 3500.75,
	}
	for in, want := range tests {
		got, err := ParseLocalizedNumber(in)
		if err != nil {
			t.Errorf("ParseLocalizedNumber(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLocalizedNumber(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLocalizedNumber("dois"); err == nil {
		t.Errorf("expected error for non-numeric input")
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := map[string]rune{
		"a,b,c\n1,2,3":       ',',
		"a;b;c\n1,5;2,5;3":   ';',
		"a\tb\tc\n1\t2\t3":   '\t',
		"a|b|c\n1|2|3":       '|',
		"single\nline,with,": ',',
	}
	for in, want := range tests {
		if got := detectDelimiter([]byte(in)); got != want {
			t.Errorf("detectDelimiter(%q) = %q, want %q", in, got, want)
		}
	}
}

func sampleViews() []IngredientView {
	return []IngredientView{
		NewIngredientView(models.Ingredient{Name: "Mussarela", Category: "Queijos", Unit: models.UnitKilogram, CurrentStock: 12.5, MinStock: 2, CostPerUnit: 38.9}),
		NewIngredientView(models.Ingredient{Name: "Azeite", Unit: models.UnitLiter, CurrentStock: 0, MinStock: 1}),
	}
}

func TestWriteIngredientsCSVCanBeImported(t *testing.T) {
	data, err := WriteIngredientsCSV(sampleViews())
	if err != nil {
		t.Fatalf("WriteIngredientsCSV failed: %v", err)
	}
	if !strings.HasPrefix(string(data), strings.Join(exportHeaders, ",")) {
		t.Errorf("missing header line:\n%s", data)
	}

	rows, rowErrs, err := ParseIngredientFile("export.csv", data)
	if err != nil || len(rowErrs) != 0 {
		t.Fatalf("re-import failed: %v %+v", err, rowErrs)
	}
	if len(rows) != 2 || rows[0].Category != "Queijos" || *rows[0].CurrentStock != 12.5 || rows[1].Unit != "L" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestWriteIngredientsXLSXCanBeImported(t *testing.T) {
	data, err := WriteIngredientsXLSX(sampleViews())
	if err != nil {
		t.Fatalf("WriteIngredientsXLSX failed: %v", err)
	}

	rows, rowErrs, err := ParseIngredientFile("export.xlsx", data)
	if err != nil || len(rowErrs) != 0 {
		t.Fatalf("re-import failed: %v %+v", err, rowErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "Mussarela" || rows[0].CostPerUnit == nil || *rows[0].CostPerUnit != 38.9 {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].CurrentStock == nil || *rows[1].CurrentStock != 0 {
		t.Errorf("zero stock must survive export, got %v", rows[1].CurrentStock)
	}
}

func TestUploadExportWithoutStorage(t *testing.T) {
	svc := NewImportExportService(nil)
	if svc.UploadEnabled() {
		t.Fatalf("uploader must be disabled by default")
	}
	if _, err := svc.UploadExport(context.Background(), "tenant-1", FormatCSV); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
