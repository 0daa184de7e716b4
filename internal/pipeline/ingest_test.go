package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/testutil"
	"github.com/ajitpratap0/gdi/pkg/warehouse/memory"
)

const ingestCSV = `country_code,country_name,date,indicator_code,indicator_name,value,unit,domain_name
FRA,France,2023-12-31,NY.GDP.PCAP.CD,GDP per capita (current US$),45000,USD,economy
USA,United States,2023-12-31,NY.GDP.PCAP.CD,GDP per capita (current US$),80000,USD,economy
`

func memoryConfig(t *testing.T, csv string) *config.Config {
	cfg := config.Default()
	cfg.Warehouse.Driver = config.DriverMemory
	cfg.Sources.Enabled = []string{config.SourceCSV}
	cfg.Sources.CSV.Path = testutil.WriteFile(t, "input.csv", []byte(csv))
	return cfg
}

func TestIngest_MemoryWarehouse(t *testing.T) {
	result, err := Ingest(context.Background(), memoryConfig(t, ingestCSV), testutil.TestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"csv": 2}, result.Fetched)
	assert.EqualValues(t, 2, result.Inserted)
	assert.NotEmpty(t, result.RunID)
}

func TestIngest_EmptySource(t *testing.T) {
	cfg := memoryConfig(t, "country_code,country_name,date,indicator_code,indicator_name,value,unit,domain_name\n")

	_, err := Ingest(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindEmptyDataset, errors.KindOf(err))
}

func TestIngest_UnknownSource(t *testing.T) {
	cfg := memoryConfig(t, ingestCSV)
	cfg.Sources.Enabled = []string{"bloomberg"}

	_, err := Ingest(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestOpenWarehouse(t *testing.T) {
	wh, err := OpenWarehouse(context.Background(), config.WarehouseConfig{Driver: config.DriverMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, wh)
	wh.Close()

	_, err = OpenWarehouse(context.Background(), config.WarehouseConfig{Driver: "sqlite"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}
