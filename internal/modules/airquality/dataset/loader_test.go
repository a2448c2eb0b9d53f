package dataset

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "No,year,month,day,hour,PM2.5,PM10,SO2,NO2,CO,O3,TEMP,PRES,DEWP,RAIN,wd,WSPM,station\n"

const hourlyCSV = header +
	"1,2013,3,1,0,4.0,4.0,4.0,7.0,300.0,77.0,-0.7,1023.0,-18.8,0.0,NNW,4.4,Dongsi\n" +
	"2,2013,3,1,1,8.0,8.0,4.0,7.0,300.0,77.0,-1.1,1023.2,-18.2,0.0,N,4.7,Dongsi\n" +
	"3,2013,3,2,23,NA,,5.0,NA,400.0,70.0,-2.0,1024.0,-19.0,0.0,N,3.1,Guanyuan\n"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "air.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestParse_Hourly(t *testing.T) {
	readings, hasHour, err := Parse(strings.NewReader(hourlyCSV))
	require.NoError(t, err)
	require.True(t, hasHour)
	require.Len(t, readings, 3)

	for _, r := range readings {
		want := time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, 0, 0, 0, time.UTC)
		assert.True(t, r.Timestamp.Equal(want), "timestamp %v; want %v", r.Timestamp, want)
	}

	first := readings[0]
	assert.Equal(t, "Dongsi", first.Station)
	assert.Equal(t, 4.0, first.PM25)
	assert.Equal(t, 300.0, first.CO)
	assert.Equal(t, -18.8, first.DEWP)
	assert.Equal(t, 4.4, first.WSPM)

	last := readings[2]
	assert.Equal(t, "Guanyuan", last.Station)
	assert.Equal(t, 23, last.Hour)
	assert.True(t, math.IsNaN(last.PM25))
	assert.True(t, math.IsNaN(last.PM10))
	assert.True(t, math.IsNaN(last.NO2))
	assert.Equal(t, 5.0, last.SO2)
}

func TestParse_DailyVariant(t *testing.T) {
	in := "station,year,month,day,PM2.5,PM10,SO2,NO2,O3,CO,TEMP,PRES,DEWP,RAIN,WSPM\n" +
		"Wanliu,2016.0,2.0,29.0,160,1,1,1,1,1,1,1,1,1,1\n"

	readings, hasHour, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.False(t, hasHour)
	require.Len(t, readings, 1)
	assert.Equal(t, time.Date(2016, time.February, 29, 0, 0, 0, 0, time.UTC), readings[0].Timestamp)
}

func TestParse_HeaderOnly(t *testing.T) {
	readings, hasHour, err := Parse(strings.NewReader(header))
	require.NoError(t, err)
	assert.True(t, hasHour)
	assert.NotNil(t, readings)
	assert.Empty(t, readings)
}

func TestParse_ByteOrderMark(t *testing.T) {
	readings, _, err := Parse(strings.NewReader("\ufeff" + hourlyCSV))
	require.NoError(t, err)
	assert.Len(t, readings, 3)
}

func TestParse_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantMsg string
	}{
		{
			name:    "missing columns",
			in:      "station,year,month,day,PM2.5\nA,2013,3,1,10\n",
			wantMsg: "missing columns PM10",
		},
		{
			name:    "empty input",
			in:      "",
			wantMsg: "missing header row",
		},
		{
			name:    "invalid calendar date",
			in:      header + "1,2013,2,30,0,1,1,1,1,1,1,1,1,1,1,N,1,Dongsi\n",
			wantMsg: "line 2: invalid date 2013-02-30",
		},
		{
			name:    "hour out of range",
			in:      header + "1,2013,2,3,24,1,1,1,1,1,1,1,1,1,1,N,1,Dongsi\n",
			wantMsg: "hour 24 out of range",
		},
		{
			name:    "month missing",
			in:      header + "1,2013,3,1,0,1,1,1,1,1,1,1,1,1,1,N,1,Dongsi\n1,2013,NA,1,0,1,1,1,1,1,1,1,1,1,1,N,1,Dongsi\n",
			wantMsg: "line 3: month: missing value",
		},
		{
			name:    "fractional day",
			in:      header + "1,2013,3,1.5,0,1,1,1,1,1,1,1,1,1,1,N,1,Dongsi\n",
			wantMsg: "day: 1.5 is not a whole number",
		},
		{
			name:    "empty station",
			in:      header + "1,2013,3,1,0,1,1,1,1,1,1,1,1,1,1,N,1,\n",
			wantMsg: "empty station",
		},
		{
			name:    "infinite concentration",
			in:      header + "1,2013,3,1,0,4,4,4,7,300,77,-0.7,1023,-18.8,0,N,4.4,Dongsi\n2,2013,3,1,1,Inf,4,4,7,300,77,-0.7,1023,-18.8,0,N,4.4,Dongsi\n",
			wantMsg: "line 3: PM2.5: +Inf is not a finite number",
		},
		{
			name:    "spelled out infinity",
			in:      header + "1,2013,3,1,0,4,-Infinity,4,7,300,77,-0.7,1023,-18.8,0,N,4.4,Dongsi\n",
			wantMsg: "line 2: PM10: -Inf is not a finite number",
		},
		{
			name:    "infinite weather reading",
			in:      header + "1,2013,3,1,0,4,4,4,7,300,77,+Inf,1023,-18.8,0,N,4.4,Dongsi\n",
			wantMsg: "line 2: TEMP: +Inf is not a finite number",
		},
		{
			name:    "negative concentration",
			in:      header + "1,2013,3,1,0,4,4,-3,7,300,77,-0.7,1023,-18.8,0,N,4.4,Dongsi\n",
			wantMsg: "line 2: SO2: -3 is negative",
		},
		{
			name:    "negative wind speed",
			in:      header + "1,2013,3,1,0,4,4,3,7,300,77,-0.7,1023,-18.8,0,N,-1.2,Dongsi\n",
			wantMsg: "line 2: WSPM: -1.2 is negative",
		},
		{
			name:    "ragged row",
			in:      header + "1,2013,3,1\n",
			wantMsg: "wrong number of fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
			assert.NotErrorIs(t, err, ErrSourceUnavailable)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_NegativeWeatherReadings(t *testing.T) {
	in := header + "1,2013,1,5,6,12,20,3,40,500,2,-11.5,1031.2,-24.0,0,NW,0,Wanliu\n"

	readings, _, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, -11.5, readings[0].TEMP)
	assert.Equal(t, -24.0, readings[0].DEWP)
	assert.Equal(t, 0.0, readings[0].WSPM)
}

func TestLoader_LocalFile(t *testing.T) {
	p := writeFile(t, hourlyCSV)
	l := NewLoader(nil, nil)

	ds, err := l.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p, ds.Source)
	assert.True(t, ds.HasHour)
	assert.Len(t, ds.Readings, 3)
	assert.False(t, ds.LoadedAt.IsZero())

	again, err := l.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ds.Readings, again.Readings)
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(nil, nil)
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = l.Load(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoader_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cleaned_data.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(hourlyCSV))
		case "/broken.csv":
			_, _ = w.Write([]byte("station,year\nA,2013\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(srv.Client(), nil)

	ds, err := l.Load(context.Background(), srv.URL+"/cleaned_data.csv")
	require.NoError(t, err)
	assert.Len(t, ds.Readings, 3)

	_, err = l.Load(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "404")

	_, err = l.Load(context.Background(), srv.URL+"/broken.csv")
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestLoader_RemoteCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(hourlyCSV))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(srv.Client(), nil).Load(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.csv"))
	assert.True(t, IsRemote("http://localhost:8080/a.csv"))
	assert.False(t, IsRemote("data/a.csv"))
	assert.False(t, IsRemote("/abs/a.csv"))
}

func TestFileWatcher(t *testing.T) {
	p := writeFile(t, hourlyCSV)
	fw, err := NewFileWatcher(p, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- fw.Run(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	other := filepath.Join(filepath.Dir(p), "other.csv")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(p, []byte(hourlyCSV+hourlyCSV[len(header):]), 0o600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
