package attendance

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/utils"
)

// Windows are the instants bounding check-in and check-out on one school day.
type Windows struct {
	SchoolStart      time.Time
	SchoolEnd        time.Time
	CheckInDeadline  time.Time
	GracePeriodEnd   time.Time
	CheckOutStart    time.Time
	CheckOutDeadline time.Time
}

// ComputeWindows derives the day's windows from the school configuration.
func ComputeWindows(cfg attendance.Config, day time.Time, resolver *clock.Resolver) (Windows, error) {
	schoolStart, err := resolver.At(day, cfg.DefaultStartTime)
	if err != nil {
		return Windows{}, fmt.Errorf("%w: default_start_time: %v", attendance.ErrInvalidConfig, err)
	}
	schoolEnd, err := resolver.At(day, cfg.DefaultEndTime)
	if err != nil {
		return Windows{}, fmt.Errorf("%w: default_end_time: %v", attendance.ErrInvalidConfig, err)
	}

	return Windows{
		SchoolStart:      schoolStart,
		SchoolEnd:        schoolEnd,
		CheckInDeadline:  schoolStart.Add(hours(cfg.CheckInWindowHours)),
		GracePeriodEnd:   schoolStart.Add(time.Duration(cfg.GracePeriodMinutes) * time.Minute),
		CheckOutStart:    schoolEnd,
		CheckOutDeadline: schoolEnd.Add(hours(cfg.CheckOutGraceHours)),
	}, nil
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// Lateness returns whether a check-in at now is late and by how many whole minutes.
// A check-in exactly at the end of the grace period is on time.
func Lateness(now, gracePeriodEnd time.Time) (bool, *int) {
	if !now.After(gracePeriodEnd) {
		return false, nil
	}
	minutes := int(now.Sub(gracePeriodEnd) / time.Minute)
	return true, &minutes
}

// WorkingHours returns the elapsed hours between check-in and check-out rounded to 2 decimals.
func WorkingHours(checkIn, checkOut time.Time) float64 {
	elapsed := checkOut.Sub(checkIn).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	return utils.Round(elapsed, 2)
}

// CheckOutStatus derives the final status from worked hours. Hours between the half-day
// and full-day thresholds stay PRESENT.
func CheckOutStatus(workingHours float64, cfg attendance.Config) attendance.Status {
	// FullDayHours is not consulted: anything at or above the half-day threshold is PRESENT.
	if workingHours < cfg.HalfDayHours {
		return attendance.StatusHalfDay
	}
	return attendance.StatusPresent
}

// geofenceResult is the outcome of checking a reported location.
type geofenceResult struct {
	Checked  bool
	Inside   bool
	Distance float64
}

// checkGeofence fails closed: enabled geofencing without school coordinates is a configuration error.
func checkGeofence(cfg attendance.Config, location *attendance.GeoPoint) (geofenceResult, error) {
	if !cfg.EnableGeoFencing {
		return geofenceResult{}, nil
	}
	if !cfg.HasSchoolLocation() {
		return geofenceResult{}, attendance.ErrSchoolLocationMissing
	}
	if location == nil {
		return geofenceResult{}, nil
	}

	inside, distance := utils.IsWithinRadius(
		location.Latitude, location.Longitude,
		*cfg.SchoolLatitude, *cfg.SchoolLongitude,
		cfg.AllowedRadiusMeters,
	)
	return geofenceResult{Checked: true, Inside: inside, Distance: distance}, nil
}
