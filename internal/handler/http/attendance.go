package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
)

type AttendanceHandler interface {
	Mark(w http.ResponseWriter, r *http.Request)
	CheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	Today(w http.ResponseWriter, r *http.Request)
	GetConfig(w http.ResponseWriter, r *http.Request)
	UpdateConfig(w http.ResponseWriter, r *http.Request)
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
	jwtService        jwt.Service
	hub               *sse.Hub
	keepalive         time.Duration
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService, jwtService jwt.Service, hub *sse.Hub) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
		jwtService:        jwtService,
		hub:               hub,
		keepalive:         30 * time.Second,
	}
}

// markBody is the JSON body of a mark request. Action is only read by Mark.
type markBody struct {
	Action     string                 `json:"action"`
	Location   *attendance.GeoPoint   `json:"location,omitempty"`
	DeviceInfo map[string]interface{} `json:"device_info,omitempty"`
	Remarks    *string                `json:"remarks,omitempty"`
}

// decodeMarkBody reads the optional body and merges request metadata into device_info.
func decodeMarkBody(r *http.Request) (markBody, attendance.MarkCommon, error) {
	var body markBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return markBody{}, attendance.MarkCommon{}, err
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())

	deviceInfo := make(map[string]interface{}, len(body.DeviceInfo)+2)
	for k, v := range body.DeviceInfo {
		deviceInfo[k] = v
	}
	deviceInfo["ip_address"] = r.RemoteAddr
	deviceInfo["user_agent"] = r.UserAgent()

	return body, attendance.MarkCommon{
		SchoolID:   claims.SchoolID,
		UserID:     claims.UserID,
		MarkedBy:   claims.UserID,
		Location:   body.Location,
		DeviceInfo: deviceInfo,
		Remarks:    body.Remarks,
	}, nil
}

func (h *attendanceHandlerImpl) mark(w http.ResponseWriter, r *http.Request, req attendance.MarkRequest) {
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.MarkAttendance(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if !result.Success {
		response.Rejected(w, string(result.Reason), result.Message, result)
		return
	}
	response.SuccessWithMessage(w, result.Message, result)
}

// Mark implements AttendanceHandler. The action comes from the body.
func (h *attendanceHandlerImpl) Mark(w http.ResponseWriter, r *http.Request) {
	body, common, err := decodeMarkBody(r)
	if err != nil {
		slog.Error("Failed to decode mark request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	req, err := attendance.NewMarkRequest(body.Action, common)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	h.mark(w, r, req)
}

// CheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	_, common, err := decodeMarkBody(r)
	if err != nil {
		slog.Error("Failed to decode check-in request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	h.mark(w, r, attendance.CheckInRequest{MarkCommon: common})
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	_, common, err := decodeMarkBody(r)
	if err != nil {
		slog.Error("Failed to decode check-out request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	h.mark(w, r, attendance.CheckOutRequest{MarkCommon: common})
}

// Today implements AttendanceHandler.
func (h *attendanceHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	status, err := h.attendanceService.GetTodayStatus(r.Context(), claims.SchoolID, claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, status)
}

// GetConfig implements AttendanceHandler.
func (h *attendanceHandlerImpl) GetConfig(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	cfg, err := h.attendanceService.GetConfig(r.Context(), claims.SchoolID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, cfg)
}

// UpdateConfig implements AttendanceHandler.
func (h *attendanceHandlerImpl) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req attendance.UpsertConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode config request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	req.SchoolID = claims.SchoolID

	cfg, err := h.attendanceService.UpsertConfig(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Attendance settings updated", cfg)
}

type streamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// StreamToken issues the short-lived token the event stream accepts in its query string.
func (h *attendanceHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	token, expiresIn, err := h.jwtService.GenerateSSEToken(claims)
	if err != nil {
		response.HandleError(w, fmt.Errorf("failed to generate SSE token: %w", err))
		return
	}
	response.Success(w, streamTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream handles SSE connection for live attendance changes of the caller's school
func (h *attendanceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		response.Unauthorized(w, "Missing token")
		return
	}

	claims, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.HandleError(w, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(claims.SchoolID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"school_id\":%q}\n\n", claims.SchoolID)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Error("Failed to encode attendance event", "event", event.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
