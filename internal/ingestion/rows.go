package ingestion

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize bounds a single row.
const MaxLineSize = 1 << 20

// ScanRows calls fn for every non-blank line of r with its zero-based line
// number, which is the row offset the title index records. Blank lines keep
// their number but are not passed on. An error from fn stops the scan and is
// returned as is.
func ScanRows(r io.Reader, fn func(row int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	row := -1
	for scanner.Scan() {
		row++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(row, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading rows: %w", err)
	}
	return nil
}
