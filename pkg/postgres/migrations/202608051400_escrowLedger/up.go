package _202608051400_escrowLedger

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS escrow_ledger (
			id              serial PRIMARY KEY,
			distribution_id varchar NOT NULL,
			direction       varchar NOT NULL,
			account         varchar NOT NULL,
			amount          numeric NOT NULL,
			reference       varchar DEFAULT NULL,
			created_at      timestamp with time zone DEFAULT current_timestamp,
			FOREIGN KEY (distribution_id) REFERENCES distributions(id) ON DELETE CASCADE
		)
	`
	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202608051400_escrowLedger"
}
