package observe

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/auctiondriver/driver/pkg/domain/competition/solution/settlement"
)

// Sink persists a settled settlement for later audit. It is optional
// ambient infrastructure: the driver runs fine without one configured.
type Sink interface {
	RecordSettlement(s settlement.Settlement) error
}

// SettlementRecord is the audit row written for every settled settlement.
type SettlementRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Solver    string    `gorm:"index;not null"`
	AuctionID uint64    `gorm:"index"`
	Orders    int       `gorm:"not null"`
	Gas       uint64    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SettlementRecord) TableName() string { return "settlement_audit" }

// MySQLSink records settlement audit rows in MySQL via GORM.
type MySQLSink struct {
	db *gorm.DB
}

// NewMySQLSink opens a MySQL connection and migrates the audit table.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLSink(dsn string) (*MySQLSink, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("observe: connect mysql: %w", err)
	}
	if err := db.AutoMigrate(&SettlementRecord{}); err != nil {
		return nil, fmt.Errorf("observe: migrate schema: %w", err)
	}
	return &MySQLSink{db: db}, nil
}

// RecordSettlement implements Sink.
func (s *MySQLSink) RecordSettlement(settled settlement.Settlement) error {
	var auctionID uint64
	if settled.AuctionID != nil {
		auctionID = uint64(*settled.AuctionID)
	}
	record := SettlementRecord{
		Timestamp: time.Now(),
		Solver:    settled.Solver.Name(),
		AuctionID: auctionID,
		Orders:    len(settled.Orders()),
		Gas:       settled.Gas,
	}
	if result := s.db.Create(&record); result.Error != nil {
		return fmt.Errorf("observe: record settlement: %w", result.Error)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
