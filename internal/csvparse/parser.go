package csvparse

// Parse tokenizes raw CSV text into rows of fields.
//
// Rules: fields are separated by commas; a field may be wrapped in double
// quotes, making commas, newlines and doubled quotes inside it literal; '\r'
// is stripped everywhere, so CRLF/CR/LF all normalize to the same row breaks;
// a trailing row without a terminating newline is still flushed at end of
// input. No backslash escapes. The parser keeps every physical row it can
// tokenize, including rows that are a single empty field; filtering blank
// rows is the caller's job.
func Parse(text string) [][]string {
	var rows [][]string
	var row []string
	var current []byte
	inQuotes := false

	pushField := func() {
		row = append(row, string(current))
		current = current[:0]
	}
	pushRow := func() {
		if len(row) > 0 {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inQuotes {
			switch {
			case ch == '"' && i+1 < len(text) && text[i+1] == '"':
				current = append(current, '"')
				i++
			case ch == '"':
				inQuotes = false
			case ch == '\r':
				// stripped inside quotes too, line endings are normalized uniformly
			default:
				current = append(current, ch)
			}
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
		case ',':
			pushField()
		case '\r':
			// ignored everywhere outside quotes
		case '\n':
			pushField()
			pushRow()
		default:
			current = append(current, ch)
		}
	}

	pushField()
	pushRow()

	return rows
}

// IsBlankRow reports whether every cell is empty or whitespace.
func IsBlankRow(cells []string) bool {
	for _, c := range cells {
		for _, r := range c {
			if r != ' ' && r != '\t' {
				return false
			}
		}
	}
	return true
}
