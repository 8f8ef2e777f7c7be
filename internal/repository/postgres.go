package repository

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// psql はPostgreSQLのプレースホルダ（$1, $2...）を使うクエリビルダ。
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// translateError はlib/pqの制約違反をリポジトリのセンチネルエラーに変換する。
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return ErrForeignKey
		case pqUniqueViolation:
			return ErrDuplicate
		}
	}
	return err
}
