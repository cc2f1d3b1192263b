package domain

import "time"

// User owns trips and expenses. Accounts are created implicitly on
// first successful OTP verification.
type User struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}
