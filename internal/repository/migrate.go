package repository

import "gorm.io/gorm"

// Models lists every table this service owns, in dependency order.
func Models() []any {
	return []any{
		&ScheduleModel{},
		&BookingModel{},
		&PassengerModel{},
		&PaymentModel{},
		&DiscountModel{},
		&DiscountUsageModel{},
		&LoyaltyAccountModel{},
		&LoyaltyEntryModel{},
		&CancellationPolicyModel{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
