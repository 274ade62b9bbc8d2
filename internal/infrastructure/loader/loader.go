package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

// Load reads a catalog seed file into raw records. The format follows the
// file extension: .json, .yaml/.yml or .xlsx.
func Load(path string) ([]domain.RawFoodRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer file.Close()

	return Read(file, filepath.Ext(path))
}

// Read parses one catalog payload. ext selects the decoder and must include
// the leading dot.
func Read(r io.Reader, ext string) ([]domain.RawFoodRecord, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return readJSON(r)
	case ".yaml", ".yml":
		return readYAML(r)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "loader", fmt.Errorf("unsupported catalog format %q", ext))
	}
}

func readJSON(r io.Reader) ([]domain.RawFoodRecord, error) {
	var records []domain.RawFoodRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "loader", fmt.Errorf("decode json: %w", err))
	}
	return records, nil
}

func readYAML(r io.Reader) ([]domain.RawFoodRecord, error) {
	var records []domain.RawFoodRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "loader", fmt.Errorf("decode yaml: %w", err))
	}
	return records, nil
}

// readXLSX reads the first sheet. Row one is the header; recognized columns
// are id, name, description, cuisine, meal_type, course, tags, allergens,
// diets, prep_time_mins and spice_level. Set-valued columns are comma
// separated.
func readXLSX(r io.Reader) ([]domain.RawFoodRecord, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "loader", fmt.Errorf("open workbook: %w", err))
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "loader", fmt.Errorf("workbook has no sheets"))
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	if _, ok := columns["id"]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "loader", fmt.Errorf("missing id column"))
	}

	records := make([]domain.RawFoodRecord, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if cell("id") == "" && cell("name") == "" {
			continue
		}

		record := domain.RawFoodRecord{
			ID:          cell("id"),
			Name:        cell("name"),
			Description: cell("description"),
			Cuisine:     cell("cuisine"),
			MealType:    cell("meal_type"),
			Course:      cell("course"),
			Tags:        splitList(cell("tags")),
			Allergens:   splitList(cell("allergens")),
			Diets:       splitList(cell("diets")),
			SpiceLevel:  cell("spice_level"),
		}
		if raw := cell("prep_time_mins"); raw != "" {
			mins, err := strconv.Atoi(raw)
			if err != nil {
				return nil, domain.WrapError(domain.ErrInvalidInput, "loader",
					fmt.Errorf("row %d: prep_time_mins %q is not a number", rowIdx+2, raw))
			}
			record.PrepTimeMins = mins
		}
		records = append(records, record)
	}
	return records, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
