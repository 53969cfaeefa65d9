package interval

// LabelFunc returns the display name of unit for quantity, choosing the singular form when
// quantity is 1.
type LabelFunc func(unit Unit, quantity uint64) string

type unitNames struct {
	singular string
	plural   string
}

var labelTables = map[string]map[Unit]unitNames{
	"en": {
		Seconds: {"second", "seconds"},
		Minutes: {"minute", "minutes"},
		Hours:   {"hour", "hours"},
		Days:    {"day", "days"},
		Weeks:   {"week", "weeks"},
	},
	"zh": {
		Seconds: {"秒", "秒"},
		Minutes: {"分钟", "分钟"},
		Hours:   {"小时", "小时"},
		Days:    {"天", "天"},
		Weeks:   {"周", "周"},
	},
}

// EnglishLabels is the default LabelFunc.
func EnglishLabels(unit Unit, quantity uint64) string {
	return lookup(labelTables["en"], unit, quantity)
}

// LabelsFor returns the LabelFunc for a UI language. Unknown languages fall back to English.
func LabelsFor(language string) LabelFunc {
	table, ok := labelTables[language]
	if !ok {
		return EnglishLabels
	}

	return func(unit Unit, quantity uint64) string {
		return lookup(table, unit, quantity)
	}
}

func lookup(table map[Unit]unitNames, unit Unit, quantity uint64) string {
	names, ok := table[unit]
	if !ok {
		return string(unit)
	}
	if quantity == 1 {
		return names.singular
	}
	return names.plural
}
