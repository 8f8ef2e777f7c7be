package model

import "github.com/google/uuid"

// IsValidID はIDがUUID形式かどうかを返す。
// UUID以外のIDはどのリソースにも一致しないため、DBに問い合わせずに未検出として扱える。
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
