package _202608011100_bootstrapDb

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS distributions (
			id                varchar PRIMARY KEY,
			creator           varchar NOT NULL,
			asset_id          varchar NOT NULL,
			token_address     varchar NOT NULL,
			distribution_kind varchar NOT NULL,
			window_end        timestamp with time zone NOT NULL,
			status            varchar NOT NULL,
			description       text DEFAULT NULL,
			total_amount      numeric NOT NULL,
			merkle_root       varchar NOT NULL,
			created_at        timestamp with time zone DEFAULT current_timestamp,
			updated_at        timestamp with time zone DEFAULT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS eligibility_entries (
			distribution_id varchar NOT NULL,
			holder          varchar NOT NULL,
			amount          numeric NOT NULL,
			created_at      timestamp with time zone DEFAULT current_timestamp,
			UNIQUE(distribution_id, holder),
			FOREIGN KEY (distribution_id) REFERENCES distributions(id) ON DELETE CASCADE
		)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202608011100_bootstrapDb"
}
