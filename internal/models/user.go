package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"surety-registry-api/pkg/datenorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account that files sureties and records hardware.
type User struct {
	ID           int64      `json:"_id"`
	FullName     string     `json:"fullName"`
	MobileNo     string     `json:"mobileNo"`
	DOB          *time.Time `json:"dob"`
	Village      string     `json:"village"`
	EmailID      string     `json:"emailId"`
	Role         string     `json:"role"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Roles returns the token roles for the account.
func (u User) Roles() []string {
	if u.Role == RoleAdmin {
		return []string{RoleAdmin, RoleUser}
	}
	return []string{RoleUser}
}

// CreateUserRequest represents the request body for creating a new user
type CreateUserRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	MobileNo string `json:"mobileNo" validate:"required,len=10,numeric"`
	DOB      string `json:"dob"`
	Village  string `json:"village" validate:"max=200"`
	EmailID  string `json:"emailId" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// ToUser builds the account to store, hashing the password.
func (r CreateUserRequest) ToUser() (User, error) {
	hash, err := HashPassword(r.Password)
	if err != nil {
		return User{}, err
	}
	role := r.Role
	if role == "" {
		role = RoleUser
	}
	return User{
		FullName:     strings.TrimSpace(r.FullName),
		MobileNo:     strings.TrimSpace(r.MobileNo),
		DOB:          datenorm.Parse(r.DOB),
		Village:      strings.TrimSpace(r.Village),
		EmailID:      strings.ToLower(strings.TrimSpace(r.EmailID)),
		Role:         role,
		PasswordHash: hash,
	}, nil
}

// HashPassword returns the bcrypt hash stored for password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	FullName *string `json:"fullName,omitempty" validate:"omitempty,max=200"`
	MobileNo *string `json:"mobileNo,omitempty" validate:"omitempty,len=10,numeric"`
	DOB      *string `json:"dob,omitempty"`
	Village  *string `json:"village,omitempty" validate:"omitempty,max=200"`
	EmailID  *string `json:"emailId,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

// UpdateProfileRequest is what a user may change about themselves.
type UpdateProfileRequest struct {
	FullName *string `json:"fullName,omitempty" validate:"omitempty,max=200"`
	EmailID  *string `json:"emailId,omitempty" validate:"omitempty,email"`
}

// ChangePasswordRequest represents the request body for changing password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// LoginRequest identifies the account by mobile number or email.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the response body for successful login
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// FilterUsers keeps users whose mobile number, date of birth, name or email
// contains q, ignoring case. An empty q keeps everything.
func FilterUsers(users []User, q string) []User {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return users
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		dob := ""
		if u.DOB != nil {
			dob = u.DOB.Format("2006-01-02")
		}
		for _, field := range []string{u.MobileNo, dob, u.FullName, u.EmailID} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}
