package relations

import (
	"time"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// Overlaps reports whether two windows share more than a single boundary day.
// Windows that only touch at an endpoint do not overlap.
func Overlaps(a, b models.Window) bool {
	return a.Start.Before(b.Finish) && a.Finish.After(b.Start)
}

// Intersect returns the common part of two overlapping windows.
func Intersect(a, b models.Window) (models.Window, bool) {
	if !Overlaps(a, b) {
		return models.Window{}, false
	}
	return models.Window{
		Start:  latest(a.Start, b.Start),
		Finish: earliest(a.Finish, b.Finish),
	}, true
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
