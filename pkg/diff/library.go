package diff

import (
	"github.com/schemaforge/drawio-schema-diff/pkg/drawio"
	"github.com/schemaforge/drawio-schema-diff/pkg/sqlparser"
)

// Compare replays the migrations under migrationsDir, extracts the diagram
// at drawioPath, and returns the rendered diff report. Interpreter failures
// are returned alongside so callers can escalate or surface them; they never
// abort the comparison.
func Compare(migrationsDir, drawioPath string) (string, []sqlparser.Failure, error) {
	result, err := sqlparser.ReadFiles(migrationsDir)
	if err != nil {
		return "", nil, err
	}

	diagramTables, err := drawio.ExtractTables(drawioPath)
	if err != nil {
		return "", result.Failures, err
	}

	report := Report(FromSchema(result.Schema), FromDiagram(diagramTables))
	return report, result.Failures, nil
}
