package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-api/internal/service"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
	"github.com/campuskit/campus-api/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance service.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Record a session's attendance for a class
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 204 "No Content"
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	if err := h.service.Mark(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List attendance records for a class
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/{classId} [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req, err := h.registerRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.ListForClass(c.Request.Context(), *req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ExportCSV godoc
// @Summary Export a class register as CSV
// @Tags Attendance
// @Produce text/csv
// @Param classId path string true "Class ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {string} string "CSV content"
// @Security BearerAuth
// @Router /attendance/{classId}/export/csv [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	req, err := h.registerRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.service.ExportCSV(c.Request.Context(), *req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportPDF godoc
// @Summary Export a class register as PDF
// @Tags Attendance
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {string} string "PDF content"
// @Security BearerAuth
// @Router /attendance/{classId}/export/pdf [get]
func (h *AttendanceHandler) ExportPDF(c *gin.Context) {
	req, err := h.registerRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.service.ExportPDF(c.Request.Context(), *req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *AttendanceHandler) registerRequest(c *gin.Context) (*service.RegisterRequest, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return nil, appErrors.Validation("from", "must be a YYYY-MM-DD date")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return nil, appErrors.Validation("to", "must be a YYYY-MM-DD date")
	}
	return &service.RegisterRequest{ClassID: c.Param("classId"), From: from, To: to}, nil
}
