// Package timeutil provides timezone utilities for Moscow time (UTC+3).
// The learning platform reports all student activity in Moscow time.
// Handles date formatting, parsing of table dates, and timezone-aware
// time operations. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// MoscowTZ is the Moscow timezone (UTC+3, no DST).
// Russia abolished DST in 2014, so this is constant year-round.
var MoscowTZ = time.FixedZone("Europe/Moscow", 3*60*60)

// Now returns the current time in Moscow timezone.
func Now() time.Time {
	return time.Now().In(MoscowTZ)
}

// ToMoscow converts a time to Moscow timezone.
func ToMoscow(t time.Time) time.Time {
	return t.In(MoscowTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in Moscow timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, MoscowTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Moscow timezone.
func StartOfDay(t time.Time) time.Time {
	msk := ToMoscow(t)
	return time.Date(msk.Year(), msk.Month(), msk.Day(), 0, 0, 0, 0, MoscowTZ)
}

// IsToday checks if the given time is today in Moscow timezone.
func IsToday(t time.Time) bool {
	now := Now()
	msk := ToMoscow(t)
	return msk.Year() == now.Year() &&
		msk.Month() == now.Month() &&
		msk.Day() == now.Day()
}

// IsWeekend checks if the given time is on a weekend.
func IsWeekend(t time.Time) bool {
	weekday := ToMoscow(t).Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// DaysSince calculates the number of days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	days := int(a2.Sub(a1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// IsSameDay checks if two times are on the same day in Moscow timezone.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := ToMoscow(t1), ToMoscow(t2)
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
	// FormatRussianDate is the Russian date format (DD.MM.YYYY).
	// The statistics table stores started_at in this format.
	FormatRussianDate = "02.01.2006"
	// FormatRussianDateTime is the Russian datetime format.
	FormatRussianDateTime = "02.01.2006 15:04"
)

// FormatMoscow formats a time in Moscow timezone with the given layout.
func FormatMoscow(t time.Time, layout string) string {
	return ToMoscow(t).Format(layout)
}

// FormatRussian formats a time in Russian format (DD.MM.YYYY).
func FormatRussian(t time.Time) string {
	return FormatMoscow(t, FormatRussianDate)
}

// ParseMoscow parses a time string in Moscow timezone.
func ParseMoscow(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, MoscowTZ)
}

// ParseRussianDate parses a date string (DD.MM.YYYY) in Moscow timezone.
func ParseRussianDate(value string) (time.Time, error) {
	return ParseMoscow(FormatRussianDate, value)
}

// FormatRelative returns a human-readable relative time string.
func FormatRelative(t time.Time) string {
	now := Now()
	msk := ToMoscow(t)
	duration := now.Sub(msk)

	if duration < 0 {
		return formatFutureDuration(-duration)
	}
	return formatPastDuration(duration)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "только что"
	case d < time.Hour:
		return fmt.Sprintf("%d мин назад", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d ч назад", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "вчера"
		}
		return fmt.Sprintf("%d дн назад", days)
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d нед назад", int(d.Hours()/24/7))
	default:
		months := int(d.Hours() / 24 / 30)
		if months < 12 {
			return fmt.Sprintf("%d мес назад", months)
		}
		return fmt.Sprintf("%d г назад", months/12)
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "сейчас"
	case d < time.Hour:
		return fmt.Sprintf("через %d мин", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("через %d ч", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "завтра"
		}
		return fmt.Sprintf("через %d дн", days)
	}
}
