// Package dataset parses the round dataset archive (numerai_training_data.csv,
// numerai_tournament_data.csv) and per-submission prediction CSVs. Rows may
// appear in any order in the source files; callers that need a specific
// ordering sort explicitly.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Partition identifies one of the three tournament-data partitions.
type Partition string

const (
	PartitionValidation Partition = "validation"
	PartitionTest       Partition = "test"
	PartitionLive       Partition = "live"
)

// TrainingRow is one row of numerai_training_data.csv.
type TrainingRow struct {
	ID       string
	Features []float64
	Target   float64
	HasLabel bool
}

// TournamentRow is one row of numerai_tournament_data.csv.
type TournamentRow struct {
	ID        string
	Era       string
	Partition Partition
	Features  []float64
	Target    float64
	HasTarget bool
}

// SubmissionRow is one row of a contestant's prediction CSV.
type SubmissionRow struct {
	ID          string
	Probability float64
}

const trainingFile = "numerai_training_data.csv"
const tournamentFile = "numerai_tournament_data.csv"

// LoadTraining reads numerai_training_data.csv from dir.
func LoadTraining(dir string) ([]TrainingRow, error) {
	f, err := os.Open(filepath.Join(dir, trainingFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", trainingFile, err)
	}
	defer f.Close()
	return parseTraining(f)
}

// LoadTournament reads numerai_tournament_data.csv from dir.
func LoadTournament(dir string) ([]TournamentRow, error) {
	f, err := os.Open(filepath.Join(dir, tournamentFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", tournamentFile, err)
	}
	defer f.Close()
	return parseTournament(f)
}

// LoadSubmission reads a contestant's prediction CSV from path.
func LoadSubmission(path string) ([]SubmissionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open submission %s: %w", path, err)
	}
	defer f.Close()
	return parseSubmission(f)
}

func parseTraining(r io.Reader) ([]TrainingRow, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol, featureCols, targetCol := classifyColumns(header)

	var rows []TrainingRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := TrainingRow{ID: rec[idCol]}
		row.Features = make([]float64, len(featureCols))
		missing := false
		for i, col := range featureCols {
			v, err := strconv.ParseFloat(rec[col], 64)
			if err != nil {
				missing = true
				continue
			}
			row.Features[i] = v
		}
		if missing {
			continue // training rows with missing feature values are excluded
		}
		if targetCol >= 0 {
			if v, err := strconv.ParseFloat(rec[targetCol], 64); err == nil {
				row.Target = v
				row.HasLabel = true
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseTournament(r io.Reader) ([]TournamentRow, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol, featureCols, targetCol := classifyColumns(header)
	eraCol := indexOf(header, "era")
	dataTypeCol := indexOf(header, "data_type")

	var rows []TournamentRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := TournamentRow{ID: rec[idCol]}
		if eraCol >= 0 {
			row.Era = rec[eraCol]
		}
		if dataTypeCol >= 0 {
			row.Partition = Partition(rec[dataTypeCol])
		}
		row.Features = make([]float64, len(featureCols))
		for i, col := range featureCols {
			if v, err := strconv.ParseFloat(rec[col], 64); err == nil {
				row.Features[i] = v
			}
		}
		if targetCol >= 0 && rec[targetCol] != "" {
			if v, err := strconv.ParseFloat(rec[targetCol], 64); err == nil {
				row.Target = v
				row.HasTarget = true
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSubmission(r io.Reader) ([]SubmissionRow, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol := indexOf(header, "id")
	probCol := indexOf(header, "probability")
	if idCol < 0 || probCol < 0 {
		return nil, fmt.Errorf("submission CSV missing id/probability columns")
	}

	var rows []SubmissionRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		p, err := strconv.ParseFloat(rec[probCol], 64)
		if err != nil {
			return nil, fmt.Errorf("parse probability %q: %w", rec[probCol], err)
		}
		rows = append(rows, SubmissionRow{ID: rec[idCol], Probability: p})
	}
	return rows, nil
}

// classifyColumns returns the index of the id column, the indices of all
// feature-* columns (in header order), and the index of the target column
// (-1 if absent).
func classifyColumns(header []string) (idCol int, featureCols []int, targetCol int) {
	idCol, targetCol = -1, -1
	for i, name := range header {
		switch {
		case name == "id":
			idCol = i
		case name == "target":
			targetCol = i
		case strings.HasPrefix(name, "feature"):
			featureCols = append(featureCols, i)
		}
	}
	return idCol, featureCols, targetCol
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
