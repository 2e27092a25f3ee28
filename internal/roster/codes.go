package roster

// UnknownLabel is returned for any code absent from a table. Feeds carry
// small enumerated codes and new ones appear without notice; an unmapped
// code must never fail a run.
const UnknownLabel = "unknown"

// CodeTable maps external enumeration codes to display labels.
type CodeTable struct {
	labels map[string]string
}

// Label resolves a code, falling back to UnknownLabel.
func (t CodeTable) Label(code string) string {
	if label, ok := t.labels[code]; ok {
		return label
	}
	return UnknownLabel
}

// Tables holds every code table the roster phase needs. Built once at
// process start and passed to the engine by injection.
type Tables struct {
	TenureStatus CodeTable
	Education    CodeTable
	Title        CodeTable
	TeachingType CodeTable
}

// NewTables builds the static code tables.
func NewTables() Tables {
	return Tables{
		TenureStatus: CodeTable{labels: map[string]string{
			"1": "permanent",
			"2": "contract",
			"3": "visiting",
			"4": "retired",
		}},
		Education: CodeTable{labels: map[string]string{
			"1": "doctorate",
			"2": "master",
			"3": "bachelor",
			"4": "associate",
		}},
		Title: CodeTable{labels: map[string]string{
			"1": "professor",
			"2": "associate professor",
			"3": "lecturer",
			"4": "assistant",
		}},
		TeachingType: CodeTable{labels: map[string]string{
			"1": "full-time",
			"2": "part-time",
			"3": "lab",
		}},
	}
}
