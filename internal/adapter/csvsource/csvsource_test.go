package csvsource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const observationsCSV = ` latitude ,longitude,date,precipitation,r_min,ssrd_mean,Tmax,Tavg,Tmin,ws10_mean
48.75,1.25,2020-01-01,0.4,71.2,35.5,8.1,5.2,2.3,3.4
48.75,1.5,2020-01-01 00:00:00,1.0,70,36,8,5,2,3
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadObservations(t *testing.T) {
	path := writeFile(t, "era5.csv", observationsCSV)

	obs, err := NewObservationSource(path, discardLogger()).LoadObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, 48.75, obs[0].Lat)
	assert.Equal(t, 1.25, obs[0].Lon)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), obs[0].Date)
	assert.Equal(t, 0.4, obs[0].Values[domain.Precipitation])
	assert.Equal(t, 71.2, obs[0].Values[domain.RMin])
	assert.Equal(t, 3.4, obs[0].Values[domain.WS10Mean])
	assert.Equal(t, obs[0].Date, obs[1].Date)
}

func TestLoadObservations_Zstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "era5.csv.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = zw.Write([]byte(observationsCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	obs, err := NewObservationSource(path, discardLogger()).LoadObservations(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 2)
}

func TestLoadObservations_MissingVariableColumn(t *testing.T) {
	path := writeFile(t, "era5.csv", "latitude,longitude,date,precipitation,r_min,ssrd_mean,Tmax,Tmin,ws10_mean\n")

	_, err := NewObservationSource(path, discardLogger()).LoadObservations(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrData))
	assert.Contains(t, err.Error(), `"Tavg"`)
}

func TestLoadObservations_BadValue(t *testing.T) {
	path := writeFile(t, "era5.csv", "latitude,longitude,date,precipitation,r_min,ssrd_mean,Tmax,Tavg,Tmin,ws10_mean\n48,1,2020-01-01,x,1,1,1,1,1,1\n")

	_, err := NewObservationSource(path, discardLogger()).LoadObservations(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrData))
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "precipitation")
}

func TestLoadObservations_BadDate(t *testing.T) {
	path := writeFile(t, "era5.csv", "latitude,longitude,date,precipitation,r_min,ssrd_mean,Tmax,Tavg,Tmin,ws10_mean\n48,1,01/02/2020,1,1,1,1,1,1,1\n")

	_, err := NewObservationSource(path, discardLogger()).LoadObservations(context.Background())
	assert.True(t, errors.Is(err, domain.ErrData))
}

func TestLoadObservations_MissingFile(t *testing.T) {
	_, err := NewObservationSource(filepath.Join(t.TempDir(), "nope.csv"), discardLogger()).LoadObservations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const agresteCSV = `,n1,n2,n3,n4,n5,n6,departement,dpt,year,variable,value,unit
0,a,b,c,d,e,Blé tendre,Eure,27,2020,Rendement,71.5,q/ha
1,a,b,c,d,e,Blé tendre,Eure-et-Loir,28,2020,Rendement,68,q/ha
2,a,b,c,d,e,Blé tendre,Seine-Maritime,76,2020,Rendement,80,q/ha
3,a,b,c,d,e,Colza,Eure,27,2020,Rendement,,q/ha
4,a,b,c,d,e,Colza,Eure,27,2020,Production,9000,t
`

func TestLoadYields(t *testing.T) {
	path := writeFile(t, "agreste.csv", agresteCSV)

	records, err := NewYieldSource(path, domain.DefaultDepartments, discardLogger()).LoadYields(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, domain.YieldRecord{
		Department: "27",
		Year:       2020,
		Variable:   "Rendement",
		Category:   "Blé tendre",
		Value:      71.5,
		Unit:       "q/ha",
	}, records[0])
	assert.Equal(t, domain.Department("28"), records[1].Department)
	assert.Equal(t, "Production", records[2].Variable)
}

func TestLoadYields_NormalizesCategory(t *testing.T) {
	// Decomposed accent: "e" followed by a combining acute.
	content := "dpt,year,variable,n6,value\n27,2020,Rendement,Ble\u0301 tendre,70\n"
	path := writeFile(t, "agreste.csv", content)

	records, err := NewYieldSource(path, domain.DefaultDepartments, discardLogger()).LoadYields(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Blé tendre", records[0].Category)
	assert.Empty(t, records[0].Unit)
}

func TestLoadYields_MissingColumn(t *testing.T) {
	path := writeFile(t, "agreste.csv", "dpt,year,variable,value\n")

	_, err := NewYieldSource(path, domain.DefaultDepartments, discardLogger()).LoadYields(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrData))
	assert.Contains(t, err.Error(), `"n6"`)
}
