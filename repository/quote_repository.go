package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Spare-Link/storefront/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CarrierQuoteRecord is one carrier rate quote handed to a shopper.
type CarrierQuoteRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CartID           string    `gorm:"type:varchar(128);not null;index" json:"cart_id"`
	CarrierAccountID string    `gorm:"type:varchar(128);not null" json:"carrier_account_id"`
	ShipmentID       string    `gorm:"type:varchar(256)" json:"shipment_id"`
	RateCount        int       `gorm:"not null" json:"rate_count"`
	RatesJSON        string    `gorm:"type:jsonb" json:"-"`
	QuotedAt         time.Time `gorm:"not null" json:"quoted_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CarrierQuoteRecord) TableName() string {
	return "carrier_quotes"
}

// CarrierQuoteRepository is the audit trail of carrier quotes, written after
// every successful quote. Support reads it with SQL.
type CarrierQuoteRepository interface {
	Save(ctx context.Context, cartID, carrierAccountID string, quote *models.CarrierQuote) error
}

type GormCarrierQuoteRepository struct {
	db *gorm.DB
}

func NewGormCarrierQuoteRepository(db *gorm.DB) CarrierQuoteRepository {
	return &GormCarrierQuoteRepository{db: db}
}

func (r *GormCarrierQuoteRepository) Save(ctx context.Context, cartID, carrierAccountID string, quote *models.CarrierQuote) error {
	rates, err := json.Marshal(quote.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	record := &CarrierQuoteRecord{
		ID:               uuid.New(),
		CartID:           cartID,
		CarrierAccountID: carrierAccountID,
		ShipmentID:       quote.ShipmentID,
		RateCount:        len(quote.Rates),
		RatesJSON:        string(rates),
		QuotedAt:         quote.QuotedAt,
	}
	return r.db.WithContext(ctx).Create(record).Error
}
