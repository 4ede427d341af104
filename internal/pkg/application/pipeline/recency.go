package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/diwise/integration-nodos/domain"
)

const (
	NoDateAvailable string = "Sin fecha disponible"
	NoData          string = "Sin datos"
)

type Clock func() time.Time

// TimeSince describes how long ago reading r was taken, relative to now.
func TimeSince(now time.Time, r *domain.Reading, loc *time.Location) string {
	if r == nil || r.Timestamp.IsZero() {
		return NoDateAvailable
	}

	t, ok := timeOf(r.Timestamp, loc)
	if !ok {
		return NoDateAvailable
	}

	return ago(now.Sub(t))
}

// TimeSinceLast describes the age of the last reading in readings. The slice is
// trusted to be in ascending time order, no search for the newest is made.
func TimeSinceLast(now time.Time, readings []domain.Reading, loc *time.Location) string {
	if len(readings) == 0 {
		return NoData
	}

	t, ok := timeOf(readings[len(readings)-1].Timestamp, loc)
	if !ok {
		return NoData
	}

	return ago(now.Sub(t))
}

func ago(d time.Duration) string {
	minutes := d.Minutes()

	switch {
	case minutes < 1:
		return "Hace menos de un minuto"
	case minutes < 2:
		return "Hace un minuto"
	case minutes < 59:
		return fmt.Sprintf("Hace %d minutos", int(math.Round(minutes)))
	case minutes < 120:
		return "Hace 1 hora"
	case minutes < 60*24:
		return fmt.Sprintf("Hace %d horas", int(math.Floor(minutes/60)))
	}

	return fmt.Sprintf("Hace %d días", int(math.Floor(minutes/(60*24))))
}

// FormatClock renders t as "HH:mm hs".
func FormatClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d hs", t.Hour(), t.Minute())
}
