package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ecm-agenda-api/internal/dto"
	"github.com/noah-isme/ecm-agenda-api/internal/service"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/export"
	"github.com/noah-isme/ecm-agenda-api/pkg/response"
)

type agendaService interface {
	Agenda(ctx context.Context, req dto.AgendaRequest) (*dto.AgendaResponse, error)
	AgendaEntries(resp *dto.AgendaResponse) []export.Entry
	RangeBounds(resp *dto.AgendaResponse) (time.Time, time.Time)
}

// AgendaHandler serves the agenda listing in several formats.
type AgendaHandler struct {
	svc  agendaService
	csv  *export.CSVExporter
	pdf  *export.PDFExporter
	ics  *export.ICSExporter
	text *export.TextRenderer
}

// NewAgendaHandler constructs an agenda handler.
func NewAgendaHandler(svc agendaService) *AgendaHandler {
	return &AgendaHandler{
		svc:  svc,
		csv:  export.NewCSVExporter(),
		pdf:  export.NewPDFExporter(),
		ics:  export.NewICSExporter(),
		text: export.NewTextRenderer(),
	}
}

// Agenda godoc
// @Summary List room events
// @Tags Agenda
// @Produce json,text/csv,application/pdf,text/calendar,text/plain
// @Param start query string false "First day (YYYY-MM-DD). Defaults to today"
// @Param end query string false "Last day (YYYY-MM-DD)"
// @Param format query string false "json, csv, pdf, ics or text"
// @Param X-API-Key header string false "API key"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /agenda [get]
func (h *AgendaHandler) Agenda(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = dto.AgendaFormatJSON
	}
	switch format {
	case dto.AgendaFormatJSON, dto.AgendaFormatCSV, dto.AgendaFormatPDF, dto.AgendaFormatICS, dto.AgendaFormatText:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format)))
		return
	}

	agenda, err := h.svc.Agenda(c.Request.Context(), dto.AgendaRequest{
		Start:  c.Query("start"),
		End:    c.Query("end"),
		Format: format,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("agenda_%s_%s", agenda.From, agenda.To)
	switch format {
	case dto.AgendaFormatCSV:
		body, err := h.csv.Render(service.AgendaDataset(agenda))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.File(c, h.csv.ContentType(), filename+".csv", body)
	case dto.AgendaFormatPDF:
		body, err := h.pdf.Render(service.AgendaDataset(agenda))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.File(c, h.pdf.ContentType(), filename+".pdf", body)
	case dto.AgendaFormatICS:
		body := h.ics.Render(fmt.Sprintf("Agenda ECM %s - %s", agenda.From, agenda.To), h.svc.AgendaEntries(agenda))
		response.File(c, h.ics.ContentType(), filename+".ics", body)
	case dto.AgendaFormatText:
		from, to := h.svc.RangeBounds(agenda)
		response.File(c, h.text.ContentType(), "", h.text.Render(from, to, h.svc.AgendaEntries(agenda)))
	default:
		response.JSON(c, http.StatusOK, agenda.Events, map[string]interface{}{
			"from":           agenda.From,
			"to":             agenda.To,
			"count":          len(agenda.Events),
			"skipped_events": agenda.SkippedEvents,
		})
	}
}
