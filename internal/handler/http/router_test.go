package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	schoolID  = "0190d6c4-0000-7000-8000-000000000001"
	studentID = "0190d6c4-0000-7000-8000-000000000002"
	adminID   = "0190d6c4-0000-7000-8000-000000000003"
	otherID   = "0190d6c4-0000-7000-8000-000000000004"
)

type fakeAttendanceService struct {
	lastMark attendance.MarkRequest
	result   attendance.MarkResult
	err      error
	config   *attendance.ConfigResponse
}

func (f *fakeAttendanceService) MarkAttendance(_ context.Context, req attendance.MarkRequest) (attendance.MarkResult, error) {
	f.lastMark = req
	return f.result, f.err
}

func (f *fakeAttendanceService) GetTodayStatus(_ context.Context, _, _ string) (attendance.TodayStatusResponse, error) {
	return attendance.TodayStatusResponse{Date: "2024-01-15", DayType: "WORKING_DAY", CanCheckIn: true}, nil
}

func (f *fakeAttendanceService) GetConfig(_ context.Context, schoolID string) (attendance.ConfigResponse, error) {
	if f.config == nil {
		return attendance.ConfigResponse{}, attendance.ErrConfigNotFound
	}
	return *f.config, nil
}

func (f *fakeAttendanceService) UpsertConfig(_ context.Context, req attendance.UpsertConfigRequest) (attendance.ConfigResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.ConfigResponse{}, err
	}
	return attendance.ConfigResponse{SchoolID: req.SchoolID, DefaultStartTime: req.DefaultStartTime}, nil
}

type fakeStatsService struct {
	stats.StatsService
	streakUsers []string
}

func (f *fakeStatsService) ComputeStreaks(_ context.Context, _ string, userIDs []string) (map[string]int, error) {
	f.streakUsers = userIDs
	out := make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		out[id] = 3
	}
	return out, nil
}

func (f *fakeStatsService) GetMonthlyStats(_ context.Context, _, _ string, month, year int) (stats.MonthlyStats, error) {
	if month < 1 || month > 12 {
		return stats.MonthlyStats{}, stats.ErrInvalidMonth
	}
	return stats.MonthlyStats{TotalDays: 20, PresentDays: 18, AttendancePercentage: 90}, nil
}

type fakeReportService struct {
	lastRequest report.Request
	err         error
}

func (f *fakeReportService) GenerateReport(_ context.Context, req report.Request) (json.RawMessage, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"report_type":"` + string(req.Type) + `"}`), nil
}

func (f *fakeReportService) InvalidateSchool(string) {}

type routerEnv struct {
	router     http.Handler
	jwt        jwt.Service
	hub        *sse.Hub
	attendance *fakeAttendanceService
	stats      *fakeStatsService
	reports    *fakeReportService
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	jwtService := jwt.NewJWTService("test-secret", time.Hour)
	hub := sse.NewHub()
	resolver := clock.NewResolver(clock.DefaultOffsetMinutes)
	resolver.Now = func() time.Time { return time.Date(2024, 1, 15, 4, 0, 0, 0, time.UTC) }

	env := &routerEnv{
		jwt:        jwtService,
		hub:        hub,
		attendance: &fakeAttendanceService{},
		stats:      &fakeStatsService{},
		reports:    &fakeReportService{},
	}
	env.router = NewRouter(
		RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}, Env: "test"},
		jwtService,
		NewAttendanceHandler(env.attendance, jwtService, hub),
		NewStatsHandler(env.stats, resolver),
		NewReportHandler(env.reports),
	)
	return env
}

func (e *routerEnv) token(t *testing.T, userID string, role user.Role) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(user.Claims{UserID: userID, SchoolID: schoolID, Role: role})
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (e *routerEnv) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "attendance-app/1.0")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestRouter_RequiresToken(t *testing.T) {
	env := newRouterEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/attendance/today", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, body.Success)
}

func TestRouter_RejectsSSETokenAsBearer(t *testing.T) {
	env := newRouterEnv(t)
	sseToken, _, err := env.jwt.GenerateSSEToken(user.Claims{UserID: studentID, SchoolID: schoolID, Role: user.RoleStudent})
	require.NoError(t, err)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/attendance/today", sseToken, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckIn_Success(t *testing.T) {
	env := newRouterEnv(t)
	env.attendance.result = attendance.MarkResult{Success: true, Action: attendance.ActionCheckIn, Message: "Checked in successfully"}

	rec, body := env.do(t, http.MethodPost, "/api/v1/attendance/check-in",
		env.token(t, studentID, user.RoleStudent),
		`{"location":{"latitude":12.97,"longitude":77.59},"device_info":{"platform":"android"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Equal(t, "Checked in successfully", body.Message)

	req, ok := env.attendance.lastMark.(attendance.CheckInRequest)
	require.True(t, ok)
	assert.Equal(t, schoolID, req.SchoolID)
	assert.Equal(t, studentID, req.UserID)
	assert.Equal(t, studentID, req.MarkedBy)
	assert.Equal(t, "android", req.DeviceInfo["platform"])
	assert.Equal(t, "attendance-app/1.0", req.DeviceInfo["user_agent"])
	assert.NotEmpty(t, req.DeviceInfo["ip_address"])
}

func TestCheckOut_EmptyBody(t *testing.T) {
	env := newRouterEnv(t)
	env.attendance.result = attendance.MarkResult{Success: true, Action: attendance.ActionCheckOut, Message: "Checked out successfully"}

	rec, _ := env.do(t, http.MethodPost, "/api/v1/attendance/check-out", env.token(t, studentID, user.RoleStudent), "")

	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := env.attendance.lastMark.(attendance.CheckOutRequest)
	assert.True(t, ok)
}

func TestMark_RejectionIsNotAnError(t *testing.T) {
	env := newRouterEnv(t)
	env.attendance.result = attendance.MarkResult{
		Success: false,
		Action:  attendance.ActionCheckIn,
		Reason:  attendance.ReasonAlreadyCheckedIn,
		Message: "You have already checked in today",
	}

	rec, body := env.do(t, http.MethodPost, "/api/v1/attendance/mark",
		env.token(t, studentID, user.RoleStudent), `{"action":"check_in"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "ALREADY_CHECKED_IN", body.Error.Code)
	assert.Contains(t, string(body.Data), `"reason":"ALREADY_CHECKED_IN"`)
}

func TestMark_InvalidActionAndLocation(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, studentID, user.RoleStudent)

	rec, body := env.do(t, http.MethodPost, "/api/v1/attendance/mark", token, `{"action":"LUNCH"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body.Error.Details, "action")
	assert.Nil(t, env.attendance.lastMark)

	rec, body = env.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, `{"location":{"latitude":123,"longitude":0}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body.Error.Details, "location.latitude")
	assert.Nil(t, env.attendance.lastMark)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/attendance/check-in", token, `{"location":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMark_ConfigurationErrorIsActionable(t *testing.T) {
	env := newRouterEnv(t)
	env.attendance.err = attendance.ErrSchoolLocationMissing

	rec, body := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", env.token(t, studentID, user.RoleStudent), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIGURATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Details["action"], "latitude")
}

func TestMark_UnexpectedErrorCarriesCause(t *testing.T) {
	env := newRouterEnv(t)
	env.attendance.err = fmt.Errorf("failed to upsert check-in: %w", context.DeadlineExceeded)

	rec, body := env.do(t, http.MethodPost, "/api/v1/attendance/check-in", env.token(t, studentID, user.RoleStudent), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Details["cause"], "deadline exceeded")
}

func TestToday(t *testing.T) {
	env := newRouterEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/attendance/today", env.token(t, studentID, user.RoleStudent), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body.Data), `"can_check_in":true`)
}

func TestConfig_AdminOnly(t *testing.T) {
	env := newRouterEnv(t)
	env.attendance.config = &attendance.ConfigResponse{SchoolID: schoolID, DefaultStartTime: "08:00"}

	rec, _ := env.do(t, http.MethodGet, "/api/v1/attendance/config", env.token(t, studentID, user.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/api/v1/attendance/config", env.token(t, adminID, user.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body.Data), `"default_start_time":"08:00"`)
}

func TestConfig_Update(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, adminID, user.RoleAdmin)

	rec, body := env.do(t, http.MethodPut, "/api/v1/attendance/config", token, `{
		"default_start_time":"08:00","default_end_time":"14:00",
		"check_in_window_hours":2,"check_out_grace_hours":2,"min_working_hours":4,
		"grace_period_minutes":15,"half_day_hours":4,"full_day_hours":8,
		"enable_geo_fencing":true,"allowed_radius_meters":200}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body.Error.Details, "school_location")

	rec, body = env.do(t, http.MethodPut, "/api/v1/attendance/config", token, `{
		"default_start_time":"07:30","default_end_time":"13:30",
		"check_in_window_hours":2,"check_out_grace_hours":2,"min_working_hours":4,
		"grace_period_minutes":15,"half_day_hours":4,"full_day_hours":8}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body.Data), schoolID)
}

func TestConfig_Missing(t *testing.T) {
	env := newRouterEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/attendance/config", env.token(t, adminID, user.RoleAdmin), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIGURATION_ERROR", body.Error.Code)
}

func TestMonthlyStats(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, studentID, user.RoleStudent)

	rec, body := env.do(t, http.MethodGet, "/api/v1/attendance/stats/monthly", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body.Data), `"month":1`)
	assert.Contains(t, string(body.Data), `"year":2024`)
	assert.Contains(t, string(body.Data), `"attendance_percentage":90`)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/attendance/stats/monthly?month=13&year=2024", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/attendance/stats/monthly?user_id="+otherID, token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/attendance/stats/monthly?user_id="+otherID, env.token(t, adminID, user.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreaks(t *testing.T) {
	env := newRouterEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/attendance/streaks", env.token(t, studentID, user.RoleStudent), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{studentID}, env.stats.streakUsers)
	assert.Contains(t, string(body.Data), studentID)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/attendance/streaks?user_ids="+otherID, env.token(t, studentID, user.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/attendance/streaks?user_ids="+studentID+","+otherID, env.token(t, adminID, user.RoleTeacher), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{studentID, otherID}, env.stats.streakUsers)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/attendance/streaks?user_ids=abc", env.token(t, adminID, user.RoleAdmin), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReport(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, adminID, user.RoleAdmin)

	rec, body := env.do(t, http.MethodGet,
		"/api/v1/reports/attendance?type=class_wise&start_date=2024-01-01&end_date=2024-01-31&class_id="+otherID, token, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"report_type":"CLASS_WISE"}`, string(body.Data))
	assert.Equal(t, schoolID, env.reports.lastRequest.SchoolID)
	require.NotNil(t, env.reports.lastRequest.ClassID)
	assert.Equal(t, otherID, *env.reports.lastRequest.ClassID)
	assert.Nil(t, env.reports.lastRequest.SectionID)
}

func TestReport_Errors(t *testing.T) {
	env := newRouterEnv(t)
	token := env.token(t, adminID, user.RoleAdmin)

	rec, body := env.do(t, http.MethodGet, "/api/v1/reports/attendance?type=WEEKLY&start_date=2024-01-01&end_date=2024-01-31", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body.Error.Details, "type")

	env.reports.err = report.ErrNoActiveAcademicYear
	rec, body = env.do(t, http.MethodGet, "/api/v1/reports/attendance?type=DEFAULTERS&start_date=2024-01-01&end_date=2024-01-31", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_ACTIVE_ACADEMIC_YEAR", body.Error.Code)
	assert.Empty(t, body.Data)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/reports/attendance?type=MONTHLY", env.token(t, studentID, user.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStream(t *testing.T) {
	env := newRouterEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	rec, body := env.do(t, http.MethodPost, "/api/v1/attendance/stream/token", env.token(t, adminID, user.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var issued streamTokenResponse
	require.NoError(t, json.Unmarshal(body.Data, &issued))

	resp, err := http.Get(server.URL + "/api/v1/attendance/stream")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/attendance/stream?token="+issued.Token, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, _ := readEvent()
	assert.Equal(t, "connected", name)

	env.hub.PublishAttendance(schoolID, "attendance.check_in", map[string]string{"user_id": studentID})
	env.hub.PublishAttendance("another-school", "attendance.check_in", map[string]string{"user_id": otherID})

	name, data := readEvent()
	assert.Equal(t, "attendance.check_in", name)
	assert.JSONEq(t, `{"user_id":"`+studentID+`"}`, data)
}
