package extract

// StripNoise blanks comment and string-literal spans before any pattern
// matching. Text that merely mentions a type name inside a comment or a
// string must never produce a dependency, so the rule is applied once here
// and every downstream scan works on the stripped lines. Stripped characters
// are replaced with spaces to keep line and column positions stable.
func StripNoise(lines []string) []string {
	out := make([]string, len(lines))
	inBlock := false

	for i, line := range lines {
		out[i] = stripLine(line, &inBlock)
	}
	return out
}

func stripLine(line string, inBlock *bool) string {
	runes := []rune(line)
	n := len(runes)
	buf := make([]rune, n)

	for i := 0; i < n; {
		if *inBlock {
			if runes[i] == '*' && i+1 < n && runes[i+1] == '/' {
				buf[i], buf[i+1] = ' ', ' '
				*inBlock = false
				i += 2
				continue
			}
			buf[i] = ' '
			i++
			continue
		}

		switch runes[i] {
		case '/':
			if i+1 < n && runes[i+1] == '/' {
				for ; i < n; i++ {
					buf[i] = ' '
				}
				continue
			}
			if i+1 < n && runes[i+1] == '*' {
				buf[i], buf[i+1] = ' ', ' '
				*inBlock = true
				i += 2
				continue
			}
			buf[i] = runes[i]
			i++
		case '@':
			if i+1 < n && runes[i+1] == '"' {
				buf[i], buf[i+1] = ' ', ' '
				i = stripVerbatimString(runes, buf, i+2)
				continue
			}
			buf[i] = runes[i]
			i++
		case '"':
			buf[i] = ' '
			i = stripQuotedString(runes, buf, i+1, '"')
		case '\'':
			buf[i] = ' '
			i = stripQuotedString(runes, buf, i+1, '\'')
		default:
			buf[i] = runes[i]
			i++
		}
	}

	return string(buf)
}

// stripQuotedString blanks until the closing quote, honoring backslash
// escapes. An unterminated literal blanks to end of line.
func stripQuotedString(runes, buf []rune, start int, quote rune) int {
	for i := start; i < len(runes); i++ {
		buf[i] = ' '
		if runes[i] == '\\' && i+1 < len(runes) {
			i++
			buf[i] = ' '
			continue
		}
		if runes[i] == quote {
			return i + 1
		}
	}
	return len(runes)
}

// stripVerbatimString blanks a @"..." literal where "" is the only escape.
func stripVerbatimString(runes, buf []rune, start int) int {
	for i := start; i < len(runes); i++ {
		buf[i] = ' '
		if runes[i] != '"' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '"' {
			i++
			buf[i] = ' '
			continue
		}
		return i + 1
	}
	return len(runes)
}
