package entity

import "time"

// OperationLog is one immutable audit record.
type OperationLog struct {
	ID     int64     `db:"id" json:"id"`
	User   string    `db:"user_name" json:"user"`
	Time   time.Time `db:"time" json:"time"`
	Module string    `db:"module" json:"module"`
	Action string    `db:"action" json:"action"`
	Detail string    `db:"detail" json:"detail"`
}
