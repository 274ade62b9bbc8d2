package loader

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

func TestReadJSON(t *testing.T) {
	payload := `[
		{"id":"dal-tadka","name":"Dal Tadka","description":"Yellow lentils","tags":["lentils"],"spice_level":"mild"},
		{"id":"aloo-gobi","name":"Aloo Gobi","description":"Potato and cauliflower"}
	]`
	records, err := Read(strings.NewReader(payload), ".json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "dal-tadka" || records[0].SpiceLevel != "mild" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
}

func TestReadYAML(t *testing.T) {
	payload := `
- id: dal-tadka
  name: Dal Tadka
  description: Yellow lentils
  cuisine: indian
  tags:
    - lentils
    - comfort
  prep_time_mins: 25
`
	records, err := Read(strings.NewReader(payload), ".yaml")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].PrepTimeMins != 25 || len(records[0].Tags) != 2 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestReadXLSX(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"id", "name", "description", "cuisine", "tags", "allergens", "prep_time_mins", "spice_level"},
		{"dal-tadka", "Dal Tadka", "Yellow lentils", "indian", "lentils, comfort", "", 25, "mild"},
		{"palak-paneer", "Palak Paneer", "Spinach with cheese", "indian", "greens", "dairy", 35, "medium"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	records, err := Read(&buf, ".xlsx")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "dal-tadka" || records[0].PrepTimeMins != 25 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if len(records[0].Tags) != 2 || records[0].Tags[1] != "comfort" {
		t.Fatalf("comma-separated tags not split: %v", records[0].Tags)
	}
	if len(records[1].Allergens) != 1 || records[1].Allergens[0] != "dairy" {
		t.Fatalf("unexpected allergens: %v", records[1].Allergens)
	}
}

func TestReadUnsupportedExtension(t *testing.T) {
	_, err := Read(strings.NewReader(""), ".csv")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReadMalformedJSON(t *testing.T) {
	_, err := Read(strings.NewReader("{not json"), ".json")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
