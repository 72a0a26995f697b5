package transaction

import (
	"bufio"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	U "recommendation/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	FormatText      = "text"
	FormatJSONLines = "jsonl"

	// DefaultItemsPath is the gjson path of the items array in a JSON line.
	DefaultItemsPath = "items"

	maxLineSize = 16 * 1024 * 1024
)

// FormatFromFileName picks the reader format from the file extension.
func FormatFromFileName(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jsonl", ".json", ".ndjson":
		return FormatJSONLines
	default:
		return FormatText
	}
}

// ReadFormat reads transactions in the given format.
func ReadFormat(r io.Reader, format string) ([][]uint64, error) {
	switch format {
	case FormatText, "":
		return Read(r)
	case FormatJSONLines:
		return ReadJSONLines(r, DefaultItemsPath)
	default:
		return nil, errors.Errorf("unknown transactions format %q", format)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// Read parses one transaction per line with ids separated by whitespace
// or commas. Blank lines and lines starting with '#' are skipped.
func Read(r io.Reader) ([][]uint64, error) {
	trns := make([][]uint64, 0)
	scanner := newScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})
		trn := make([]uint64, 0, len(tokens))
		for _, token := range tokens {
			item, err := strconv.ParseUint(token, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid item %q on line %d", token, lineNum)
			}
			trn = append(trn, item)
		}
		trns = append(trns, U.MakeUniqueUint64s(trn))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan transactions")
	}
	log.WithFields(log.Fields{"lines": lineNum, "transactions": len(trns)}).Debug("Read transactions")
	return trns, nil
}

// ReadJSONLines parses one JSON document per line and takes the
// transaction from the array found at path.
func ReadJSONLines(r io.Reader, path string) ([][]uint64, error) {
	if path == "" {
		path = DefaultItemsPath
	}
	trns := make([][]uint64, 0)
	scanner := newScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			return nil, errors.Errorf("invalid json on line %d", lineNum)
		}

		value := gjson.Get(line, path)
		if !value.Exists() {
			log.WithFields(log.Fields{"line_no": lineNum, "path": path}).Info("Missing items. Treating as empty transaction.")
			trns = append(trns, []uint64{})
			continue
		}
		if !value.IsArray() {
			return nil, errors.Errorf("items at %q on line %d is not an array", path, lineNum)
		}

		elems := value.Array()
		trn := make([]uint64, 0, len(elems))
		for _, elem := range elems {
			item, err := parseItem(elem)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			trn = append(trn, item)
		}
		trns = append(trns, U.MakeUniqueUint64s(trn))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan transactions")
	}
	return trns, nil
}

// parseItem accepts non-negative integer numbers and numeric strings.
func parseItem(elem gjson.Result) (uint64, error) {
	switch elem.Type {
	case gjson.Number:
		item, err := strconv.ParseUint(elem.Raw, 10, 64)
		if err != nil {
			return 0, errors.Errorf("item %s is not a non-negative integer", elem.Raw)
		}
		return item, nil
	case gjson.String:
		item, err := strconv.ParseUint(elem.Str, 10, 64)
		if err != nil {
			return 0, errors.Errorf("item %q is not a non-negative integer", elem.Str)
		}
		return item, nil
	default:
		return 0, errors.Errorf("unsupported item %s", elem.Raw)
	}
}
