package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

// POST /admin/matches/process-all
func (h *Handler) ProcessAll(c echo.Context) error {
	report, err := h.svc.ProcessAllParticipants(c.Request().Context())
	if report == nil {
		return mware.RespondError(c, err)
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	failed := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failed = append(failed, f.ParticipantID)
	}
	return c.JSON(status, echo.Map{
		"processed":   report.Processed,
		"matched":     report.Matched,
		"total_bonus": report.TotalBonus,
		"failed":      failed,
	})
}
