package domain

import "time"

// ProductView — один просмотр товара для счётчика аналитики.
type ProductView struct {
	ProductID ID
	VendorID  ID
	ViewedAt  time.Time
}
