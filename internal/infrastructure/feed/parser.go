// Package feed parses editorial tables into domain records and keeps an
// in-memory snapshot of student statistics. Tables arrive as raw cell
// grids: a header row followed by data rows.
package feed

import (
	"strconv"
	"strings"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// ChallengeRecord is one parsed row of the challenge table.
type ChallengeRecord struct {
	ID         string
	Title      string
	Profession string
	Rule       string
	Value      int
	IsActive   bool
}

// ProductRecord is one parsed row of the product table.
type ProductRecord struct {
	ID          string
	Title       string
	Description string
	Value       int
	IsActive    bool
}

// cellValue converts a cell the way the statistics table is typed:
// all-digit cells become ints, everything else stays a string.
func cellValue(cell string) any {
	if n, err := strconv.Atoi(cell); err == nil && cell != "" && !strings.HasPrefix(cell, "+") {
		return n
	}
	return cell
}

// ParseStats converts a raw statistics grid into per-student snapshots.
// The first row is the header; the first column of every data row is the
// student id. Rows with a non-numeric id are skipped: the table always
// contains a few service rows at the bottom.
func ParseStats(rows [][]string) map[student.ID]student.Statistics {
	if len(rows) < 2 {
		return nil
	}

	header := rows[0]
	stats := make(map[student.ID]student.Statistics, len(rows)-1)

	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil || id <= 0 {
			continue
		}

		snapshot := make(student.Statistics, len(header))
		for i, key := range header {
			if key == "" || i >= len(row) {
				continue
			}
			snapshot[key] = cellValue(row[i])
		}
		stats[student.ID(id)] = snapshot
	}

	return stats
}

// ParseChallenges converts a raw challenge grid into records.
// Expected columns: id, title, profession, eval, value, is_active.
// Malformed rows are returned as-is with zero Value so the reconciler
// can reject them with a proper reason, except rows with an empty id,
// which are dropped outright.
func ParseChallenges(rows [][]string) []ChallengeRecord {
	if len(rows) < 2 {
		return nil
	}

	idx := columnIndex(rows[0])
	var records []ChallengeRecord

	for _, row := range rows[1:] {
		id := cell(row, idx.at("id"))
		if id == "" {
			continue
		}
		records = append(records, ChallengeRecord{
			ID:         id,
			Title:      cell(row, idx.at("title")),
			Profession: cell(row, idx.at("profession")),
			Rule:       cell(row, idx.at("eval")),
			Value:      cellInt(row, idx.at("value")),
			IsActive:   cellBool(row, idx.at("is_active")),
		})
	}

	return records
}

// ParseProducts converts a raw product grid into records.
// Expected columns: id, title, description, value, is_active.
func ParseProducts(rows [][]string) []ProductRecord {
	if len(rows) < 2 {
		return nil
	}

	idx := columnIndex(rows[0])
	var records []ProductRecord

	for _, row := range rows[1:] {
		id := cell(row, idx.at("id"))
		if id == "" {
			continue
		}
		records = append(records, ProductRecord{
			ID:          id,
			Title:       cell(row, idx.at("title")),
			Description: cell(row, idx.at("description")),
			Value:       cellInt(row, idx.at("value")),
			IsActive:    cellBool(row, idx.at("is_active")),
		})
	}

	return records
}

// columns maps lowercased header names to their positions.
// Missing columns resolve to -1, which cell() treats as empty.
type columns map[string]int

func columnIndex(header []string) columns {
	idx := make(columns, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func (c columns) at(name string) int {
	if i, ok := c[name]; ok {
		return i
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellInt(row []string, i int) int {
	n, err := strconv.Atoi(cell(row, i))
	if err != nil {
		return 0
	}
	return n
}

func cellBool(row []string, i int) bool {
	switch strings.ToLower(cell(row, i)) {
	case "true", "1", "yes", "да":
		return true
	default:
		return false
	}
}
