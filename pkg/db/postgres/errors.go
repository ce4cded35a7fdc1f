package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const duplicateKeyCode = "23505"

func IsDuplicateKeyErr(err error) bool {
	var pgErr *pq.Error
	if err != nil && errors.As(err, &pgErr) {
		return pgErr.Code == pq.ErrorCode(duplicateKeyCode)
	}
	return false
}
