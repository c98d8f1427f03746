package movie

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRow is returned when a row cannot be turned into a Movie.
var ErrMalformedRow = errors.New("malformed movie row")

const (
	rowFields   = 9
	fieldSep    = "|"
	genreSep    = ","
	absentToken = "-"
)

// Row columns, in file order.
const (
	colID = iota
	colType
	colTitle
	colOriginalTitle
	colAdult
	colYear
	colEndYear
	colRuntime
	colGenres
)

// ParseRow parses one pipe-delimited row:
//
//	id|type|title|originalTitle|adult|year|endYear|runtime|genres
//
// A "-" marks an absent value. Genres are comma separated.
func ParseRow(line string) (*Movie, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, fieldSep)
	if len(fields) < rowFields {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRow, rowFields, len(fields))
	}
	id := strings.TrimSpace(fields[colID])
	if id == "" || id == absentToken {
		return nil, fmt.Errorf("%w: missing identifier", ErrMalformedRow)
	}
	year, err := parseInt(fields[colYear])
	if err != nil {
		return nil, fmt.Errorf("%w: year: %v", ErrMalformedRow, err)
	}
	runtime, err := parseInt(fields[colRuntime])
	if err != nil {
		return nil, fmt.Errorf("%w: runtime: %v", ErrMalformedRow, err)
	}
	adult, err := parseInt(fields[colAdult])
	if err != nil {
		return nil, fmt.Errorf("%w: adult flag: %v", ErrMalformedRow, err)
	}
	return New(id, Attrs{
		Type:    parseString(fields[colType]),
		Title:   parseString(fields[colTitle]),
		Adult:   adult.OrElse(0) == 1,
		Year:    year,
		Runtime: runtime,
		Genres:  parseGenres(fields[colGenres]),
	})
}

func parseString(token string) Optional[string] {
	if token == absentToken || token == "" {
		return None[string]()
	}
	return Some(token)
}

func parseInt(token string) (Optional[int], error) {
	token = strings.TrimSpace(token)
	if token == absentToken || token == "" {
		return None[int](), nil
	}
	v, err := strconv.Atoi(token)
	if err != nil {
		return None[int](), err
	}
	return Some(v), nil
}

func parseGenres(token string) []string {
	token = strings.TrimSpace(token)
	if token == absentToken || token == "" {
		return nil
	}
	parts := strings.Split(token, genreSep)
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			genres = append(genres, p)
		}
	}
	return genres
}
