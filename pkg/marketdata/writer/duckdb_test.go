package writer

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

type DuckDBWriterTestSuite struct {
	suite.Suite
	tempDir string
}

func TestDuckDBWriterSuite(t *testing.T) {
	suite.Run(t, new(DuckDBWriterTestSuite))
}

func (suite *DuckDBWriterTestSuite) SetupSuite() {
	tempDir, err := os.MkdirTemp("", "duckdb-writer-test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *DuckDBWriterTestSuite) TearDownSuite() {
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func candle(symbol string, hour int, close float64) types.MarketData {
	return types.MarketData{
		Id:     "",
		Symbol: symbol,
		Time:   time.Date(2024, 8, 19, hour, 30, 0, 0, time.UTC),
		Open:   close - 1,
		High:   close + 1,
		Low:    close - 2,
		Close:  close,
		Volume: 1000,
	}
}

func (suite *DuckDBWriterTestSuite) TestInitialize() {
	writer := NewDuckDBWriter(suite.tempDir + "/init.parquet")

	err := writer.Initialize()
	suite.NoError(err)
	suite.NotNil(writer.db)
	suite.NotNil(writer.tx)
	suite.NotNil(writer.stmt)

	suite.NoError(writer.Close())
}

func (suite *DuckDBWriterTestSuite) TestWriteWithoutInitialize() {
	writer := NewDuckDBWriter(suite.tempDir + "/no_init.parquet")

	err := writer.Write(candle("NIFTY", 9, 100))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeHistoricalDataFailed))
}

func (suite *DuckDBWriterTestSuite) TestFinalizeWithoutInitialize() {
	writer := NewDuckDBWriter(suite.tempDir + "/no_init_finalize.parquet")

	_, err := writer.Finalize()
	suite.Error(err)
	suite.Contains(err.Error(), "not initialized")
}

func (suite *DuckDBWriterTestSuite) TestWriteAndFinalize() {
	outputPath := suite.tempDir + "/roundtrip.parquet"
	writer := NewDuckDBWriter(outputPath)

	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(candle("NIFTY", 9, 100)))
	suite.Require().NoError(writer.Write(candle("NIFTY", 10, 101.5)))
	suite.Require().NoError(writer.Write(candle("NIFTY", 11, 99.25)))

	path, err := writer.Finalize()
	suite.NoError(err)
	suite.Equal(outputPath, path)
	suite.NoError(writer.Close())

	info, err := os.Stat(outputPath)
	suite.Require().NoError(err)
	suite.Greater(info.Size(), int64(0))

	// Read the file back through a fresh connection.
	db, err := sql.Open("duckdb", ":memory:")
	suite.Require().NoError(err)

	defer db.Close()

	var count int

	var lastClose float64

	row := db.QueryRow(fmt.Sprintf(`SELECT count(*), max(close) FROM '%s' WHERE id <> ''`, outputPath))
	suite.Require().NoError(row.Scan(&count, &lastClose))
	suite.Equal(3, count)
	suite.InDelta(101.5, lastClose, 0.0001)
}

func (suite *DuckDBWriterTestSuite) TestWriteKeepsProvidedID() {
	outputPath := suite.tempDir + "/provided_id.parquet"
	writer := NewDuckDBWriter(outputPath)

	suite.Require().NoError(writer.Initialize())

	withID := candle("NIFTY", 9, 100)
	withID.Id = "candle-1"
	suite.Require().NoError(writer.Write(withID))

	_, err := writer.Finalize()
	suite.Require().NoError(err)
	suite.NoError(writer.Close())

	db, err := sql.Open("duckdb", ":memory:")
	suite.Require().NoError(err)

	defer db.Close()

	var id string

	row := db.QueryRow(fmt.Sprintf(`SELECT id FROM '%s'`, outputPath))
	suite.Require().NoError(row.Scan(&id))
	suite.Equal("candle-1", id)
}

func (suite *DuckDBWriterTestSuite) TestCloseWithoutInitialize() {
	writer := NewDuckDBWriter(suite.tempDir + "/close_no_init.parquet")
	suite.NoError(writer.Close())
}

func (suite *DuckDBWriterTestSuite) TestCloseDiscardsUncommittedCandles() {
	outputPath := suite.tempDir + "/discarded.parquet"
	writer := NewDuckDBWriter(outputPath)

	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(candle("NIFTY", 9, 100)))
	suite.NoError(writer.Close())

	_, err := os.Stat(outputPath)
	suite.True(os.IsNotExist(err))
}

func (suite *DuckDBWriterTestSuite) TestCloseAfterFinalize() {
	writer := NewDuckDBWriter(suite.tempDir + "/close_after_finalize.parquet")

	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(candle("NIFTY", 9, 100)))

	_, err := writer.Finalize()
	suite.Require().NoError(err)

	suite.NoError(writer.Close())
	suite.NoError(writer.Close())
}

func (suite *DuckDBWriterTestSuite) TestFinalizeExportError() {
	writer := NewDuckDBWriter("/nonexistent/directory/export.parquet")

	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(candle("NIFTY", 9, 100)))

	_, err := writer.Finalize()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeHistoricalDataFailed))
	suite.NoError(writer.Close())
}

func (suite *DuckDBWriterTestSuite) TestOutputPathWithSingleQuote() {
	outputPath := suite.tempDir + "/it's.parquet"
	writer := NewDuckDBWriter(outputPath)

	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(candle("NIFTY", 9, 100)))

	path, err := writer.Finalize()
	suite.NoError(err)
	suite.Equal(outputPath, path)
	suite.NoError(writer.Close())

	_, statErr := os.Stat(outputPath)
	suite.NoError(statErr)
}
