package entity

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleUser
}

// Account represents a row in the `users` table.
type Account struct {
	ID           int64     `db:"id" json:"id"`
	Role         string    `db:"role" json:"role"`
	FullName     string    `db:"full_name" json:"fullname"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// AccountView is the outward projection of an account; it never carries the
// password hash.
type AccountView struct {
	ID          int64  `json:"id,omitempty"`
	Role        string `json:"role"`
	FullName    string `json:"fullname"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	CreatedDate string `json:"createdDate,omitempty"`
}

// View projects a for single-account lookups.
func (a *Account) View() AccountView {
	return AccountView{Role: a.Role, FullName: a.FullName, Username: a.Username, Email: a.Email}
}

// ListView projects a for the account listing, including id and creation date.
func (a *Account) ListView() AccountView {
	v := a.View()
	v.ID = a.ID
	if !a.CreatedAt.IsZero() {
		v.CreatedDate = a.CreatedAt.Format("2006-01-02")
	}
	return v
}
