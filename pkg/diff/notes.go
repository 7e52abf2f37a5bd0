package diff

import "strings"

// Note-line grammars, case-insensitive on keywords:
//
//	FK <col>[,<col>...] -> <table>[.<col>[,<col>...]]
//	[Unique ]Index on [<col>[,<col>...]][ where <predicate>]
//
// The diagram's visual graph cannot express composite foreign keys or
// partial-index predicates, so tables carry them as note lines.

// ParseFKNote parses one foreign-key annotation line. It reports false for
// lines not in the FK grammar.
func ParseFKNote(line string) (ForeignKeySummary, bool) {
	stripped := strings.TrimSpace(line)
	if len(stripped) < 3 || !strings.EqualFold(stripped[:3], "FK ") {
		return ForeignKeySummary{}, false
	}
	payload := strings.TrimSpace(stripped[3:])
	localPart, targetPart, found := strings.Cut(payload, "->")
	if !found {
		return ForeignKeySummary{}, false
	}

	fk := ForeignKeySummary{LocalColumns: splitNoteColumns(localPart)}
	targetPart = strings.TrimSpace(targetPart)
	if tablePart, columnPart, hasCols := strings.Cut(targetPart, "."); hasCols {
		fk.RefTable = normalize(tablePart)
		fk.RefColumns = splitNoteColumns(columnPart)
	} else {
		fk.RefTable = normalize(targetPart)
	}
	return fk, true
}

// ParseIndexNote parses one index annotation line. It reports false for
// lines not in the index grammar.
func ParseIndexNote(line string) (IndexSummary, bool) {
	stripped := strings.TrimSpace(line)
	lowered := strings.ToLower(stripped)
	if !strings.Contains(lowered, "index on [") {
		return IndexSummary{}, false
	}
	unique := strings.HasPrefix(lowered, "unique ")
	if unique {
		stripped = stripped[len("unique "):]
		lowered = strings.ToLower(stripped)
	}
	if !strings.HasPrefix(lowered, "index on [") {
		return IndexSummary{}, false
	}
	remainder := stripped[len("index on ["):]
	columnsPart, tail, found := strings.Cut(remainder, "]")
	if !found {
		return IndexSummary{}, false
	}

	ix := IndexSummary{Columns: splitNoteColumns(columnsPart), Unique: unique}
	tail = strings.TrimSpace(tail)
	if len(tail) >= 6 && strings.EqualFold(tail[:6], "where ") {
		ix.Where = normalize(tail[6:])
	}
	return ix, true
}

func splitNoteColumns(raw string) []string {
	var cols []string
	for _, chunk := range strings.Split(raw, ",") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		cols = append(cols, normalize(chunk))
	}
	return cols
}
