package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/services"
)

// maxImportFileSize - ограничение размера загружаемого файла (10 МБ)
const maxImportFileSize = 10 << 20

// ImportExportController - импорт и выгрузка справочника ингредиентов
type ImportExportController struct {
	importExportService *services.ImportExportService
}

func NewImportExportController(importExportService *services.ImportExportService) *ImportExportController {
	return &ImportExportController{importExportService: importExportService}
}

// Import загружает CSV или XLSX файл (multipart поле file).
// С ?dry_run=true только разбирает файл и возвращает строки без записи.
// POST /api/v1/ingredients/import
func (ic *ImportExportController) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Файл не передан",
			"details": err.Error(),
		})
		return
	}
	if header.Size > maxImportFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Файл больше 10 МБ"})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportFileSize+1))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	rows, rowErrors, err := services.ParseIngredientFile(header.Filename, data)
	if err != nil {
		respondError(c, "Ошибка разбора файла", err)
		return
	}

	if c.Query("dry_run") == "true" {
		c.JSON(http.StatusOK, gin.H{
			"rows":   rows,
			"errors": rowErrors,
			"count":  len(rows),
		})
		return
	}

	result, err := ic.importExportService.ImportIngredients(currentTenantID(c), rows, performedBy(c))
	if err != nil {
		respondError(c, "Ошибка импорта", err)
		return
	}
	result.Errors = append(rowErrors, result.Errors...)
	c.JSON(http.StatusOK, result)
}

// Export отдает файл выгрузки
// GET /api/v1/ingredients/export?format=xlsx|csv
func (ic *ImportExportController) Export(c *gin.Context) {
	format := services.ExportFormat(strings.ToLower(c.DefaultQuery("format", "xlsx")))

	file, err := ic.importExportService.Export(currentTenantID(c), format)
	if err != nil {
		respondError(c, "Ошибка выгрузки", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Upload кладет выгрузку в S3-совместимое хранилище и возвращает ссылку
// POST /api/v1/ingredients/export/upload?format=xlsx|csv
func (ic *ImportExportController) Upload(c *gin.Context) {
	format := services.ExportFormat(strings.ToLower(c.DefaultQuery("format", "xlsx")))

	url, err := ic.importExportService.UploadExport(c.Request.Context(), currentTenantID(c), format)
	if err != nil {
		respondError(c, "Ошибка загрузки выгрузки", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
