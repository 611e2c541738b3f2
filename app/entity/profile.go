package entity

import (
	"database/sql"
	"time"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

type Profile struct {
	ID          uint64
	AccountID   uint64
	Bio         sql.NullString
	Phone       sql.NullString
	AvatarPath  sql.NullString
	Gender      sql.NullString
	DateOfBirth sql.NullTime
	Country     sql.NullString
	City        sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
