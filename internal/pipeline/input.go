package pipeline

import (
	"bufio"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zip-mapper/internal/model"
)

// NormalizeCodes trims codes, drops empties and removes duplicates keeping
// the first occurrence.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = model.NormalizePostalCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// SplitCodes parses a comma-separated list of postal codes.
func SplitCodes(s string) []string {
	return NormalizeCodes(strings.Split(s, ","))
}

// ReadCodes reads postal codes from text with one code per line, or several
// comma-separated codes per line.
func ReadCodes(r io.Reader) ([]string, error) {
	var codes []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		codes = append(codes, strings.Split(sc.Text(), ",")...)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: read codes")
	}
	return NormalizeCodes(codes), nil
}
