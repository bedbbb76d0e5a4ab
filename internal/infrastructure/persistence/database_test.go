package persistence

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockDatabase opens a Database over a sqlmock connection so pool and
// query behaviour can be tested without Postgres.
func mockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock
}

func TestDatabase_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	// gorm.Open itself pings once through the dialector.
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	db := &Database{DB: gormDB}

	mock.ExpectPing()
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := mockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _ := mockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)

	// A single idle sqlmock connection is open and nothing has waited.
	assert.GreaterOrEqual(t, stats.OpenConnections, 1)
	assert.Equal(t, int64(0), stats.WaitCount)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_QueriesThroughPool(t *testing.T) {
	db, mock := mockDatabase(t)

	type product struct {
		ID   int
		Name string
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`) + `.*ORDER BY.*LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Ceramic Mug").
			AddRow(2, "Walnut Tray"))

	var products []product
	err := db.DB.Table("products").Order("name ASC").Limit(10).Find(&products).Error
	require.NoError(t, err)

	require.Len(t, products, 2)
	assert.Equal(t, "Ceramic Mug", products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
