package dto

// Agenda output formats.
const (
	AgendaFormatJSON = "json"
	AgendaFormatCSV  = "csv"
	AgendaFormatPDF  = "pdf"
	AgendaFormatICS  = "ics"
	AgendaFormatText = "text"
)

// AgendaRequest captures the raw /agenda query parameters. Empty dates fall
// back to the configured default range starting today.
type AgendaRequest struct {
	Start  string
	End    string
	Format string
}

// AgendaEvent is one calendar entry in the agenda listing. Start and End are
// empty for all-day entries.
type AgendaEvent struct {
	Room            string `json:"room"`
	Date            string `json:"date"`
	DateLabel       string `json:"date_label"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	AllDay          bool   `json:"all_day"`
	Title           string `json:"title"`
	Instrument      string `json:"instrument,omitempty"`
	Teacher         string `json:"teacher,omitempty"`
	Student         string `json:"student,omitempty"`
	EventID         string `json:"event_id,omitempty"`
}

// AgendaResponse is the agenda for a date range.
type AgendaResponse struct {
	From          string
	To            string
	Events        []AgendaEvent
	SkippedEvents int
}
