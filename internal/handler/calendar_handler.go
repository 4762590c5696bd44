package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"calendar-mirror/internal/middleware"
	"calendar-mirror/internal/service"
)

// maxImportSize caps uploaded calendar files at 10 MB.
const maxImportSize = 10 << 20

type CalendarHandler struct {
	feedService    *service.FeedService
	authMiddleware *middleware.AuthMiddleware
}

func NewCalendarHandler(feedService *service.FeedService, authMiddleware *middleware.AuthMiddleware) *CalendarHandler {
	return &CalendarHandler{
		feedService:    feedService,
		authMiddleware: authMiddleware,
	}
}

// Export handles GET /calendar/export with optional ISO 8601 start/end
// range parameters, returning an attachment .ics document.
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start parameter")
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end parameter")
		return
	}

	body, err := h.feedService.ExportCalendar(userID, start, end)
	if err != nil {
		log.Printf("Error exporting calendar for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Error exporting calendar")
		return
	}

	w.Header().Set("Content-Type", contentTypeICS)
	w.Header().Set("Content-Disposition", `attachment; filename="calendar-export.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

type importRequest struct {
	ICalData string `json:"icalData"`
}

type importResponse struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
	Skipped  int  `json:"skipped"`
}

// Import handles POST /calendar/import, accepting either a multipart file
// upload (field "file") or a JSON body with raw calendar text.
func (h *CalendarHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	text, err := readImportBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "No calendar data provided")
		return
	}

	imported, skipped, err := h.feedService.ImportCalendar(userID, text)
	if err != nil {
		log.Printf("Error importing calendar for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Error importing calendar")
		return
	}

	writeJSON(w, http.StatusOK, importResponse{Success: true, Imported: imported, Skipped: skipped})
}

func readImportBody(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			return "", errInvalidUpload
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", errInvalidUpload
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
		if err != nil {
			return "", errInvalidUpload
		}
		return string(data), nil
	}

	var req importRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImportSize)).Decode(&req); err != nil {
		return "", errInvalidBody
	}
	return req.ICalData, nil
}

var (
	errInvalidUpload = jsonError("Invalid file upload")
	errInvalidBody   = jsonError("Invalid request body")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		utc := t.UTC()
		return &utc, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}
