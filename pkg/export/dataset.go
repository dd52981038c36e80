package export

import (
	"fmt"
	"time"
)

// Column describes one exported field. Width is a relative weight used by
// the PDF layout; zero means 1.
type Column struct {
	Key    string
	Header string
	Width  float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

func (d Dataset) validate(kind string) error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("%s requires at least one column", kind)
	}
	return nil
}

// Entry is one calendar item for the ICS and text renderers. Start and End
// are local times; End is exclusive.
type Entry struct {
	UID             string
	Room            string
	Title           string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	AllDay          bool
}

var shortWeekdays = [...]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// DateLabel formats a date the way the academy writes it, e.g. "Jue 15/01".
func DateLabel(t time.Time) string {
	return fmt.Sprintf("%s %s", shortWeekdays[t.Weekday()], t.Format("02/01"))
}
