package sqlparser

import "strings"

// StripComments removes line (--) and block (/* */) comments so that
// statement splitting never treats a semicolon inside a comment as a
// terminator. Comment markers inside single or double quoted strings stay
// literal; an unterminated block comment runs to the end of the input.
func StripComments(sql string) string {
	var buf strings.Builder
	buf.Grow(len(sql))
	inSingle, inDouble := false, false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if !inSingle && !inDouble {
			if ch == '-' && i+1 < len(sql) && sql[i+1] == '-' {
				for i < len(sql) && sql[i] != '\n' {
					i++
				}
				if i < len(sql) {
					buf.WriteByte('\n')
				}
				continue
			}
			if ch == '/' && i+1 < len(sql) && sql[i+1] == '*' {
				i += 2
				for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
					i++
				}
				i++
				continue
			}
		}
		switch {
		case ch == '\'' && !inDouble:
			if inSingle && i+1 < len(sql) && sql[i+1] == '\'' {
				buf.WriteString("''")
				i++
				continue
			}
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			if inDouble && i+1 < len(sql) && sql[i+1] == '"' {
				buf.WriteString(`""`)
				i++
				continue
			}
			inDouble = !inDouble
		}
		buf.WriteByte(ch)
	}
	return buf.String()
}

// SplitStatements splits SQL text on semicolons, honoring single and double
// quoted strings (including doubled-quote escapes) so quoted semicolons stay
// literal. Comments must already be stripped.
func SplitStatements(sql string) []string {
	var statements []string
	var buf strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case ch == '\'' && !inDouble:
			if inSingle && i+1 < len(sql) && sql[i+1] == '\'' {
				buf.WriteString("''")
				i++
				continue
			}
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			if inDouble && i+1 < len(sql) && sql[i+1] == '"' {
				buf.WriteString(`""`)
				i++
				continue
			}
			inDouble = !inDouble
		}
		if ch == ';' && !inSingle && !inDouble {
			if stmt := strings.TrimSpace(buf.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			buf.Reset()
			continue
		}
		buf.WriteByte(ch)
	}
	if tail := strings.TrimSpace(buf.String()); tail != "" {
		statements = append(statements, tail)
	}
	return statements
}

// SplitTopLevelCommas splits text on commas that sit outside parentheses and
// quoted strings, so a type's own parentheses (numeric(10,2)) or a nested
// constraint column list never fragment an item.
func SplitTopLevelCommas(text string) []string {
	var parts []string
	var buf strings.Builder
	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\'' && !inDouble:
			if inSingle && i+1 < len(text) && text[i+1] == '\'' {
				buf.WriteString("''")
				i++
				continue
			}
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			if inDouble && i+1 < len(text) && text[i+1] == '"' {
				buf.WriteString(`""`)
				i++
				continue
			}
			inDouble = !inDouble
		case ch == '(' && !inSingle && !inDouble:
			depth++
		case ch == ')' && !inSingle && !inDouble && depth > 0:
			depth--
		}
		if ch == ',' && depth == 0 && !inSingle && !inDouble {
			if part := strings.TrimSpace(buf.String()); part != "" {
				parts = append(parts, part)
			}
			buf.Reset()
			continue
		}
		buf.WriteByte(ch)
	}
	if tail := strings.TrimSpace(buf.String()); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// cutTopLevelKeyword splits text at the first occurrence of the given
// keyword outside parentheses and quotes, returning the text before it and
// the text after it. The second return is empty when the keyword is absent.
func cutTopLevelKeyword(text, keyword string) (string, string) {
	upper := strings.ToUpper(text)
	kw := strings.ToUpper(keyword)
	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(text); i++ {
		switch {
		case text[i] == '\'' && !inDouble:
			inSingle = !inSingle
		case text[i] == '"' && !inSingle:
			inDouble = !inDouble
		case text[i] == '(' && !inSingle && !inDouble:
			depth++
		case text[i] == ')' && !inSingle && !inDouble && depth > 0:
			depth--
		}
		if depth != 0 || inSingle || inDouble {
			continue
		}
		if strings.HasPrefix(upper[i:], kw) &&
			(i == 0 || isWordBreak(upper[i-1])) &&
			(i+len(kw) >= len(upper) || isWordBreak(upper[i+len(kw)])) {
			return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+len(kw):])
		}
	}
	return strings.TrimSpace(text), ""
}

func isWordBreak(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '(' || ch == ')'
}

// NormalizeIdentifier folds an unquoted identifier to lower case and strips
// the quotes from a quoted one, which keeps its case verbatim. Dotted names
// are normalized segment by segment.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return identifier
	}
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) >= 2 && strings.HasPrefix(part, `"`) && strings.HasSuffix(part, `"`) {
			parts[i] = part[1 : len(part)-1]
		} else {
			parts[i] = strings.ToLower(part)
		}
	}
	return strings.Join(parts, ".")
}

// SplitIdentifierList splits a comma-separated identifier list and
// normalizes each entry.
func SplitIdentifierList(raw string) []string {
	var idents []string
	for _, chunk := range strings.Split(raw, ",") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		idents = append(idents, NormalizeIdentifier(chunk))
	}
	return idents
}
