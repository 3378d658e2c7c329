package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ExportFormat - формат выгрузки справочника ингредиентов
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"

	exportSheetName = "Ingredients"
	maxImportRows   = 5000
)

// exportHeaders - колонки выгрузки. Импорт принимает те же названия.
var exportHeaders = []string{"name", "category", "unit", "current_stock", "min_stock", "cost_per_unit", "status", "stock_percentage"}

// headerAliases - варианты названий колонок при импорте (en, pt, ru) после нормализации normalizeHeader
var headerAliases = map[string]string{
	"name":           "name",
	"ingredient":     "name",
	"nome":           "name",
	"ingrediente":    "name",
	"наименование":   "name",
	"название":       "name",
	"ингредиент":     "name",
	"category":       "category",
	"categoria":      "category",
	"категория":      "category",
	"unit":           "unit",
	"unidade":        "unit",
	"un":             "unit",
	"единица":        "unit",
	"ед_изм":         "unit",
	"current_stock":  "current_stock",
	"stock":          "current_stock",
	"quantity":       "current_stock",
	"estoque":        "current_stock",
	"estoque_atual":  "current_stock",
	"quantidade":     "current_stock",
	"остаток":        "current_stock",
	"количество":     "current_stock",
	"min_stock":      "min_stock",
	"minimum":        "min_stock",
	"estoque_minimo": "min_stock",
	"minimo":         "min_stock",
	"минимум":        "min_stock",
	"мин_остаток":    "min_stock",
	"cost_per_unit":  "cost_per_unit",
	"cost":           "cost_per_unit",
	"price":          "cost_per_unit",
	"custo":          "cost_per_unit",
	"preco":          "cost_per_unit",
	"custo_unitario": "cost_per_unit",
	"цена":           "cost_per_unit",
	"себестоимость":  "cost_per_unit",
}

// IngredientRow - строка файла импорта. nil в числовом поле означает «колонки нет или ячейка пустая».
type IngredientRow struct {
	Line         int      `json:"line"`
	Name         string   `json:"name"`
	Category     string   `json:"category,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	CurrentStock *float64 `json:"current_stock,omitempty"`
	MinStock     *float64 `json:"min_stock,omitempty"`
	CostPerUnit  *float64 `json:"cost_per_unit,omitempty"`
}

// RowError - ошибка в строке файла импорта
type RowError struct {
	Line    int    `json:"line"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// ImportResult - итог импорта ингредиентов
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

// ExportFile - готовая выгрузка
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Uploader - хранилище для выгрузок (S3-совместимое)
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ImportExportService - импорт и выгрузка справочника ингредиентов
type ImportExportService struct {
	ingredients *IngredientService
	uploader    Uploader
	now         func() time.Time
}

// NewImportExportService создает новый экземпляр ImportExportService
func NewImportExportService(ingredients *IngredientService) *ImportExportService {
	return &ImportExportService{ingredients: ingredients, now: time.Now}
}

// SetUploader включает загрузку выгрузок во внешнее хранилище
func (s *ImportExportService) SetUploader(u Uploader) {
	s.uploader = u
}

// UploadEnabled - настроено ли внешнее хранилище
func (s *ImportExportService) UploadEnabled() bool {
	return s.uploader != nil
}

// ParseIngredientFile разбирает CSV или XLSX файл в строки импорта.
// Строки с ошибками возвращаются отдельно и не прерывают разбор.
func ParseIngredientFile(filename string, data []byte) ([]IngredientRow, []RowError, error) {
	var (
		records [][]string
		err     error
	)
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".txt"):
		records, err = readCSVRecords(data)
	case strings.HasSuffix(lower, ".xlsx"):
		records, err = readXLSXRecords(data)
	default:
		return nil, nil, fmt.Errorf("%w: неподдерживаемый формат файла %s (ожидается .csv или .xlsx)", ErrInvalidInput, filename)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: файл пуст", ErrInvalidInput)
	}

	columns := mapHeaders(records[0])
	if _, ok := columns["name"]; !ok {
		return nil, nil, fmt.Errorf("%w: не найдена колонка с названием ингредиента", ErrInvalidInput)
	}
	if len(records)-1 > maxImportRows {
		return nil, nil, fmt.Errorf("%w: не более %d строк за один импорт", ErrInvalidInput, maxImportRows)
	}

	var (
		rows    []IngredientRow
		rowErrs []RowError
	)
	for i, record := range records[1:] {
		line := i + 2
		if isBlankRecord(record) {
			continue
		}
		row, err := buildRow(line, record, columns)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Name: row.Name, Message: err.Error()})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

// readCSVRecords декодирует CSV: UTF-8, иначе Windows-1252; разделитель определяется по содержимому
func readCSVRecords(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	utf8Data := data
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err == nil {
			utf8Data = decoded
		}
	}

	reader := csv.NewReader(bytes.NewReader(utf8Data))
	reader.Comma = detectDelimiter(utf8Data)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: ошибка чтения CSV: %v", ErrInvalidInput, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// detectDelimiter определяет разделитель CSV файла
func detectDelimiter(data []byte) rune {
	// Первая строка достаточно показательна и не содержит десятичных запятых из данных
	sample := string(data)
	if idx := strings.IndexByte(sample, '\n'); idx >= 0 {
		sample = sample[:idx]
	}
	if len(sample) > 1000 {
		sample = sample[:1000]
	}

	delimiter := ','
	maxCount := strings.Count(sample, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if count := strings.Count(sample, string(candidate)); count > maxCount {
			maxCount = count
			delimiter = candidate
		}
	}
	return delimiter
}

func readXLSXRecords(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка открытия XLSX файла: %v", ErrInvalidInput, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: файл не содержит листов", ErrInvalidInput)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %s: %w", sheetName, err)
	}
	return rows, nil
}

// normalizeHeader приводит заголовок к виду ключа headerAliases
func normalizeHeader(h string) string {
	h = foldAccents(strings.ToLower(strings.TrimSpace(strings.Trim(h, "\"'\t"))))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_").Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return strings.Trim(h, "_")
}

// mapHeaders возвращает индекс колонки для каждого известного поля. Первое совпадение побеждает.
func mapHeaders(headers []string) map[string]int {
	columns := map[string]int{}
	for i, h := range headers {
		field, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := columns[field]; !seen {
			columns[field] = i
		}
	}
	return columns
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func buildRow(line int, record []string, columns map[string]int) (IngredientRow, error) {
	cell := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(strings.Trim(record[idx], "\"'\t"))
	}

	row := IngredientRow{
		Line:     line,
		Name:     cell("name"),
		Category: cell("category"),
		Unit:     cell("unit"),
	}
	if row.Name == "" {
		return row, fmt.Errorf("пустое название")
	}

	numbers := []struct {
		field string
		dst   **float64
	}{
		{"current_stock", &row.CurrentStock},
		{"min_stock", &row.MinStock},
		{"cost_per_unit", &row.CostPerUnit},
	}
	for _, n := range numbers {
		raw := cell(n.field)
		if raw == "" {
			continue
		}
		v, err := ParseLocalizedNumber(raw)
		if err != nil {
			return row, fmt.Errorf("%s: %v", n.field, err)
		}
		if v < 0 {
			return row, fmt.Errorf("%s не может быть отрицательным", n.field)
		}
		*n.dst = &v
	}
	return row, nil
}

// ParseLocalizedNumber разбирает число с десятичной запятой или точкой ("1.234,5", "1,234.5", "0,25")
func ParseLocalizedNumber(raw string) (float64, error) {
	s := strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(raw))
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("некорректное число %q", raw)
	}
	return d.InexactFloat64(), nil
}

// ImportIngredients создает новые ингредиенты и обновляет существующие по имени.
// Остаток существующего ингредиента выставляется инвентаризацией.
func (s *ImportExportService) ImportIngredients(tenantID string, rows []IngredientRow, performedBy string) (*ImportResult, error) {
	result := &ImportResult{Errors: []RowError{}}

	for _, row := range rows {
		existing, err := s.ingredients.FindByName(tenantID, row.Name)
		switch {
		case err == nil:
			if err := s.updateFromRow(tenantID, existing.ID, row, performedBy); err != nil {
				result.Errors = append(result.Errors, RowError{Line: row.Line, Name: row.Name, Message: err.Error()})
				continue
			}
			result.Updated++

		case errors.Is(err, ErrNotFound):
			if row.Unit == "" {
				result.Errors = append(result.Errors, RowError{Line: row.Line, Name: row.Name, Message: "не указана единица измерения"})
				continue
			}
			in := IngredientInput{Name: row.Name, Category: row.Category, Unit: row.Unit}
			if row.CurrentStock != nil {
				in.CurrentStock = *row.CurrentStock
			}
			if row.MinStock != nil {
				in.MinStock = *row.MinStock
			}
			if row.CostPerUnit != nil {
				in.CostPerUnit = *row.CostPerUnit
			}
			if _, err := s.ingredients.Create(tenantID, in, performedBy); err != nil {
				result.Errors = append(result.Errors, RowError{Line: row.Line, Name: row.Name, Message: err.Error()})
				continue
			}
			result.Created++

		default:
			return result, err
		}
	}

	result.Skipped = len(result.Errors)
	log.Printf("📥 Импорт ингредиентов (tenant %s): создано %d, обновлено %d, ошибок %d",
		tenantID, result.Created, result.Updated, result.Skipped)
	return result, nil
}

func (s *ImportExportService) updateFromRow(tenantID, id string, row IngredientRow, performedBy string) error {
	upd := IngredientUpdate{MinStock: row.MinStock, CostPerUnit: row.CostPerUnit}
	if row.Category != "" {
		upd.Category = &row.Category
	}
	if row.Unit != "" {
		upd.Unit = &row.Unit
	}
	if _, err := s.ingredients.Update(tenantID, id, upd); err != nil {
		return err
	}
	if row.CurrentStock != nil {
		if _, err := s.ingredients.AdjustStock(tenantID, id, *row.CurrentStock, performedBy, "Импорт из файла"); err != nil {
			return err
		}
	}
	return nil
}

// Export выгружает справочник ингредиентов пиццерии
func (s *ImportExportService) Export(tenantID string, format ExportFormat) (*ExportFile, error) {
	views, err := s.ingredients.List(tenantID, IngredientFilter{})
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format("20060102-150405")
	switch format {
	case FormatCSV:
		data, err := WriteIngredientsCSV(views)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Filename: "ingredients-" + stamp + ".csv", ContentType: contentTypeCSV, Data: data}, nil
	case FormatXLSX, "":
		data, err := WriteIngredientsXLSX(views)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Filename: "ingredients-" + stamp + ".xlsx", ContentType: contentTypeXLSX, Data: data}, nil
	}
	return nil, fmt.Errorf("%w: неизвестный формат %q", ErrInvalidInput, format)
}

// UploadExport строит выгрузку и кладет ее во внешнее хранилище, возвращает URL
func (s *ImportExportService) UploadExport(ctx context.Context, tenantID string, format ExportFormat) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: хранилище выгрузок не настроено", ErrUnavailable)
	}
	file, err := s.Export(tenantID, format)
	if err != nil {
		return "", err
	}
	url, err := s.uploader.Upload(ctx, "exports/"+tenantID+"/"+file.Filename, file.ContentType, file.Data)
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки выгрузки: %w", err)
	}
	log.Printf("📤 Выгрузка %s загружена (tenant %s)", file.Filename, tenantID)
	return url, nil
}

func exportRecord(v IngredientView) []string {
	return []string{
		v.Name,
		v.Category,
		string(v.Unit),
		decimal.NewFromFloat(v.CurrentStock).String(),
		decimal.NewFromFloat(v.MinStock).String(),
		decimal.NewFromFloat(v.CostPerUnit).String(),
		string(v.Status),
		fmt.Sprintf("%d", v.StockPercentage),
	}
}

// WriteIngredientsCSV пишет выгрузку в CSV (разделитель запятая, десятичная точка)
func WriteIngredientsCSV(views []IngredientView) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, err
	}
	for _, v := range views {
		if err := w.Write(exportRecord(v)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ошибка записи CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteIngredientsXLSX пишет выгрузку в XLSX с одним листом
func WriteIngredientsXLSX(views []IngredientView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", exportSheetName)

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
		_ = f.SetCellStyle(exportSheetName, "A1", lastCol+"1", style)
	}

	for i, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			v.Name, v.Category, string(v.Unit),
			v.CurrentStock, v.MinStock, v.CostPerUnit,
			string(v.Status), v.StockPercentage,
		}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(exportSheetName, "A", "A", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка записи XLSX: %w", err)
	}
	return buf.Bytes(), nil
}
