package collector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Direction selects which side of a flow nfdump aggregates on
type Direction string

const (
	DirectionSource      Direction = "srcip"
	DirectionDestination Direction = "dstip"
)

// Directions are queried in this order for every channel
var Directions = []Direction{DirectionSource, DirectionDestination}

// byteUnits maps nfdump's human readable suffixes to multipliers
var byteUnits = map[string]float64{
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
}

// nfdump prints one header line and four summary lines around the records
const (
	nfdumpHeaderLines  = 1
	nfdumpSummaryLines = 4
)

func splitLines(out []byte) []string {
	trimmed := strings.TrimRight(string(out), "\r\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// parseListing returns the sorted, non-empty file names of an ls output
func parseListing(out []byte) []string {
	var files []string
	for _, line := range splitLines(out) {
		if name := strings.TrimSpace(line); name != "" {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files
}

// nfdumpRecords strips the header and summary lines from nfdump output
func nfdumpRecords(out []byte) []string {
	lines := splitLines(out)
	if len(lines) <= nfdumpHeaderLines+nfdumpSummaryLines {
		return nil
	}
	return lines[nfdumpHeaderLines : len(lines)-nfdumpSummaryLines]
}

// parseRecord splits a "src | dst | bytes" record into its cells, dropping
// the \x01 separators nfdump leaves in formatted output.
func parseRecord(row string) ([]string, error) {
	cells := strings.Split(row, "|")
	if len(cells) < 3 {
		return nil, fmt.Errorf("%w: record %q", ErrUnknownDataFormat, row)
	}
	for i, cell := range cells {
		cells[i] = strings.TrimSpace(strings.ReplaceAll(cell, "\x01", ""))
	}
	return cells, nil
}

// recordAddress picks the address the record was aggregated on
func recordAddress(cells []string, dir Direction) string {
	if dir == DirectionDestination {
		return cells[1]
	}
	return cells[0]
}

// parseBytes converts "1234", "12.5 M", "1.2 G" or "3 T" to a byte count. Fractional
// bytes are truncated.
func parseBytes(s string) (int64, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: byte count %q", ErrUnknownDataFormat, s)
		}
		return n, nil
	case 2:
		mult, ok := byteUnits[fields[1]]
		if !ok {
			return 0, fmt.Errorf("%w: unit %q", ErrUnknownDataFormat, fields[1])
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: byte count %q", ErrUnknownDataFormat, s)
		}
		return int64(v * mult), nil
	default:
		return 0, fmt.Errorf("%w: byte count %q", ErrUnknownDataFormat, s)
	}
}
