package analysis

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-server/internal/modules/airquality/types"
)

func at(station string, day, hour int, pm25 float64) types.Reading {
	return types.Reading{
		Station:   station,
		Year:      2017,
		Month:     2,
		Day:       day,
		Hour:      hour,
		Timestamp: time.Date(2017, time.February, day, hour, 0, 0, 0, time.UTC),
		PM25:      pm25,
		PM10:      math.NaN(),
		SO2:       math.NaN(),
		NO2:       math.NaN(),
		O3:        math.NaN(),
		CO:        math.NaN(),
		TEMP:      math.NaN(),
		PRES:      math.NaN(),
		DEWP:      math.NaN(),
		RAIN:      math.NaN(),
		WSPM:      math.NaN(),
	}
}

func TestRFM_RecencyFromGlobalMax(t *testing.T) {
	readings := []types.Reading{
		at("A", 10, 0, 160),
		at("A", 15, 0, 180),
		at("A", 16, 0, 40),
		at("B", 20, 0, 90),
	}

	rows := RFM(readings, DefaultThreshold)

	require.Len(t, rows, 1)
	assert.Equal(t, types.RFMRow{Station: "A", Recency: 5, Frequency: 2, Magnitude: 170.0}, rows[0])
}

func TestRFM_OmitsStationsBelowThreshold(t *testing.T) {
	readings := []types.Reading{
		at("A", 10, 0, 200),
		at("B", 12, 0, 150),
		at("B", 18, 0, 20),
		at("B", 19, 0, math.NaN()),
	}

	rows := RFM(readings, DefaultThreshold)

	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].Station)
	assert.Equal(t, 1, rows[0].Frequency)
	assert.Equal(t, 200.0, rows[0].Magnitude)
	assert.Equal(t, 19-10, rows[0].Recency)
}

func TestRFM_WholeDaysOnly(t *testing.T) {
	readings := []types.Reading{
		at("A", 10, 23, 151),
		at("B", 11, 22, 10),
	}

	rows := RFM(readings, DefaultThreshold)

	require.Len(t, rows, 1)
	// 23 hours apart.
	assert.Equal(t, 0, rows[0].Recency)
}

func TestRFM_Empty(t *testing.T) {
	rows := RFM(nil, DefaultThreshold)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows = RFM([]types.Reading{at("A", 1, 0, 10)}, DefaultThreshold)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRFM_OrderIndependent(t *testing.T) {
	var readings []types.Reading
	stations := []string{"Dongsi", "Guanyuan", "Wanliu"}
	for d := 1; d <= 28; d++ {
		for h := 0; h < 24; h += 3 {
			for i, s := range stations {
				pm := float64((d*37+h*11+i*53)%300) + 0.1*float64(h)
				readings = append(readings, at(s, d, h, pm))
			}
		}
	}

	want := RFM(readings, DefaultThreshold)
	require.Len(t, want, 3)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5; i++ {
		shuffled := append([]types.Reading(nil), readings...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, RFM(shuffled, DefaultThreshold))
	}
}

func TestRFM_SortedByStation(t *testing.T) {
	readings := []types.Reading{
		at("Wanliu", 3, 0, 300),
		at("Dongsi", 2, 0, 300),
		at("Guanyuan", 1, 0, 300),
	}

	rows := RFM(readings, 100)

	require.Len(t, rows, 3)
	assert.Equal(t, "Dongsi", rows[0].Station)
	assert.Equal(t, "Guanyuan", rows[1].Station)
	assert.Equal(t, "Wanliu", rows[2].Station)
	assert.Equal(t, 2, rows[1].Recency)
}
