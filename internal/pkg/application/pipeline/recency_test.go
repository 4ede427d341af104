package pipeline

import (
	"testing"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/matryer/is"
)

func TestTimeSinceWording(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		age      time.Duration
		expected string
	}{
		{age: 30 * time.Second, expected: "Hace menos de un minuto"},
		{age: 90 * time.Second, expected: "Hace un minuto"},
		{age: 45 * time.Minute, expected: "Hace 45 minutos"},
		{age: 90 * time.Minute, expected: "Hace 1 hora"},
		{age: 119 * time.Minute, expected: "Hace 1 hora"},
		{age: 5 * time.Hour, expected: "Hace 5 horas"},
		{age: 23*time.Hour + 59*time.Minute, expected: "Hace 23 horas"},
		{age: 3 * 24 * time.Hour, expected: "Hace 3 días"},
	}

	for _, c := range cases {
		r := domain.Reading{Timestamp: domain.EpochMillis(now.Add(-c.age).UnixMilli())}
		is.Equal(TimeSince(now, &r, time.UTC), c.expected)
	}
}

func TestThatTimeSinceFallsBackWithoutTimestamp(t *testing.T) {
	is := is.New(t)

	now := time.Now()

	is.Equal(TimeSince(now, nil, time.UTC), NoDateAvailable)
	is.Equal(TimeSince(now, &domain.Reading{}, time.UTC), NoDateAvailable)
	is.Equal(TimeSince(now, &domain.Reading{Timestamp: domain.TimestampText("nope")}, time.UTC), NoDateAvailable)
}

func TestThatTimeSinceAcceptsTextTimestamps(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := domain.Reading{Timestamp: domain.TimestampText("2024-05-01T11:50:00")}

	is.Equal(TimeSince(now, &r, time.UTC), "Hace 10 minutos")
}

func TestThatTimeSinceLastUsesTheLastElement(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	readings := []domain.Reading{
		{Timestamp: domain.EpochMillis(now.Add(-10 * time.Second).UnixMilli())},
		{Timestamp: domain.EpochMillis(now.Add(-5 * time.Hour).UnixMilli())},
	}

	is.Equal(TimeSinceLast(now, readings, time.UTC), "Hace 5 horas")
	is.Equal(TimeSinceLast(now, nil, time.UTC), NoData)
}

func TestThatPipelineUsesInjectedClock(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p, err := New(DefaultConfig(), WithClock(func() time.Time { return now }))
	is.NoErr(err)

	r := domain.Reading{Timestamp: domain.EpochMillis(now.Add(-3 * 24 * time.Hour).UnixMilli())}
	is.Equal(p.TimeSince(&r), "Hace 3 días")
}

func TestFormatClock(t *testing.T) {
	is := is.New(t)
	is.Equal(FormatClock(time.Date(2024, 5, 1, 7, 5, 0, 0, time.UTC)), "07:05 hs")
}
