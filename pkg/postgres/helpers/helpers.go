package helpers

import "gorm.io/gorm"

// WrapTxAndCommit runs fn inside tx when one is provided, otherwise it opens
// a transaction on db and commits/rolls back around fn.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
	}

	res, err := fn(tx)

	if err != nil && !exists {
		tx.Rollback()
	}
	if err == nil && !exists {
		tx.Commit()
	}
	return res, err
}
