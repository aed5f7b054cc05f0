package validator

import (
	"errors"
	"testing"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"123e4567-e89b-12d3-a456-426614174000",
		"123E4567-E89B-12D3-A456-426614174000",
	}
	invalid := []string{
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"urn:uuid:123e4567-e89b-12d3-a456-426614174000",
		"",
	}
	for _, id := range valid {
		if !IsValidUUID(id) {
			t.Errorf("IsValidUUID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if IsValidUUID(id) {
			t.Errorf("IsValidUUID(%q) = true, want false", id)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2023-01-01", "2000-12-31"}
	invalid := []string{"2023-13-01", "2023-02-30", "01-01-2023", ""}
	for _, d := range valid {
		if _, ok := IsValidDate(d); !ok {
			t.Errorf("IsValidDate(%q) = false, want true", d)
		}
	}
	for _, d := range invalid {
		if _, ok := IsValidDate(d); ok {
			t.Errorf("IsValidDate(%q) = true, want false", d)
		}
	}
}

func TestIsValidTimeOfDay(t *testing.T) {
	valid := []string{"00:00", "08:00", "23:59", "12:30"}
	invalid := []string{"24:00", "8:00", "08:60", "0800", ""}
	for _, s := range valid {
		if !IsValidTimeOfDay(s) {
			t.Errorf("IsValidTimeOfDay(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidTimeOfDay(s) {
			t.Errorf("IsValidTimeOfDay(%q) = true, want false", s)
		}
	}
}

func TestCoordinates(t *testing.T) {
	if !IsValidLatitude(-90) || !IsValidLatitude(90) || IsValidLatitude(90.1) {
		t.Error("latitude bounds are wrong")
	}
	if !IsValidLongitude(-180) || !IsValidLongitude(180) || IsValidLongitude(-180.5) {
		t.Error("longitude bounds are wrong")
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Err() != nil {
		t.Fatal("empty errors should be nil")
	}

	errs.Add("user_id", "user_id is required")
	errs.Add("action", "action must be one of: CHECK_IN, CHECK_OUT")

	err := errs.Err()
	var target ValidationErrors
	if !errors.As(err, &target) {
		t.Fatal("expected ValidationErrors")
	}
	m := target.ToMap()
	if m["user_id"] != "user_id is required" {
		t.Errorf("unexpected map: %v", m)
	}
	if err.Error() != "user_id: user_id is required; action: action must be one of: CHECK_IN, CHECK_OUT" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
