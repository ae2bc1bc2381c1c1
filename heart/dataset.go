package heart

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var csvColumns = []string{
	"Age", "Sex", "ChestPainType", "RestingBP", "Cholesterol", "FastingBS",
	"RestingECG", "MaxHR", "ExerciseAngina", "Oldpeak", "ST_Slope", "HeartDisease",
}

// LoadCSV reads a labeled dataset from a CSV file. The file may carry a
// UTF-8 BOM, which spreadsheet exports often prepend.
func LoadCSV(path string) ([]Record, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	return readCSV(file)
}

func readCSV(r io.Reader) ([]Record, []int, error) {
	utf8Reader := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	reader := csv.NewReader(utf8Reader)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range csvColumns {
		if _, ok := idx[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %s", name)
		}
	}

	var records []Record
	var labels []int
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv row: %w", err)
		}
		line++

		rec, label, err := parseRow(row, idx)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
		labels = append(labels, label)
	}

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("dataset is empty")
	}
	return records, labels, nil
}

func parseRow(row []string, idx map[string]int) (Record, int, error) {
	age, err := strconv.Atoi(row[idx["Age"]])
	if err != nil {
		return Record{}, 0, fmt.Errorf("invalid Age %q", row[idx["Age"]])
	}
	restingBP, err := strconv.Atoi(row[idx["RestingBP"]])
	if err != nil {
		return Record{}, 0, fmt.Errorf("invalid RestingBP %q", row[idx["RestingBP"]])
	}
	cholesterol, err := strconv.Atoi(row[idx["Cholesterol"]])
	if err != nil {
		return Record{}, 0, fmt.Errorf("invalid Cholesterol %q", row[idx["Cholesterol"]])
	}
	maxHR, err := strconv.Atoi(row[idx["MaxHR"]])
	if err != nil {
		return Record{}, 0, fmt.Errorf("invalid MaxHR %q", row[idx["MaxHR"]])
	}
	oldpeak, err := strconv.ParseFloat(row[idx["Oldpeak"]], 64)
	if err != nil {
		return Record{}, 0, fmt.Errorf("invalid Oldpeak %q", row[idx["Oldpeak"]])
	}
	label, err := strconv.Atoi(row[idx["HeartDisease"]])
	if err != nil {
		return Record{}, 0, fmt.Errorf("invalid HeartDisease %q", row[idx["HeartDisease"]])
	}

	rec := Record{
		Age:            age,
		Sex:            row[idx["Sex"]],
		ChestPainType:  row[idx["ChestPainType"]],
		RestingBP:      restingBP,
		Cholesterol:    cholesterol,
		FastingBS:      normalizeYesNo(row[idx["FastingBS"]]),
		RestingECG:     row[idx["RestingECG"]],
		MaxHR:          maxHR,
		ExerciseAngina: normalizeYesNo(row[idx["ExerciseAngina"]]),
		Oldpeak:        oldpeak,
		STSlope:        row[idx["ST_Slope"]],
	}
	return rec, label, nil
}

// normalizeYesNo maps the dataset spellings (Y/N for angina, 0/1 for fasting
// blood sugar) onto the wire labels
func normalizeYesNo(v string) string {
	switch v {
	case "Y", "Yes", "1":
		return "Yes"
	case "N", "No", "0":
		return "No"
	}
	return v
}
