package _202608011130_claimRecords

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	// The unique(distribution_id, holder) constraint is the at-most-once
	// claim guarantee; everything else in the claims engine leans on it.
	query := `
		CREATE TABLE IF NOT EXISTS claim_records (
			distribution_id varchar NOT NULL,
			holder          varchar NOT NULL,
			claimed_amount  numeric NOT NULL,
			platform_fee    numeric NOT NULL,
			maintenance_fee numeric NOT NULL,
			net_amount      numeric NOT NULL,
			claimed_at      timestamp with time zone DEFAULT current_timestamp,
			UNIQUE(distribution_id, holder),
			FOREIGN KEY (distribution_id) REFERENCES distributions(id) ON DELETE CASCADE
		)
	`
	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202608011130_claimRecords"
}
