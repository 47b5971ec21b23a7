// Package dto decodes HTML form submissions into handler inputs.
package dto

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlog/carlog/internal/model"
)

// Form decoding errors. Each maps to a 400 response.
var (
	ErrInvalidForm = errors.New("malformed form body")
	ErrInvalidCost = errors.New("cost must be a number")
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
)

// RegisterForm is the registration form.
type RegisterForm struct {
	Username string
	Email    string
	Password string
}

// LoginForm is the login form.
type LoginForm struct {
	Email    string
	Password string
}

// AddServiceForm is the add-service form.
type AddServiceForm struct {
	ServiceType string
	Cost        float64
	Notes       string
	// Date is nil when the field was left blank.
	Date *time.Time
}

// ParseRegisterForm reads the registration fields. Emptiness is checked by
// the account service.
func ParseRegisterForm(r *http.Request) (RegisterForm, error) {
	if err := r.ParseForm(); err != nil {
		return RegisterForm{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	return RegisterForm{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}, nil
}

// ParseLoginForm reads the login fields.
func ParseLoginForm(r *http.Request) (LoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return LoginForm{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	return LoginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}, nil
}

// ParseAddServiceForm reads and converts the add-service fields.
func ParseAddServiceForm(r *http.Request) (*AddServiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	cost, err := ParseCost(r.PostFormValue("cost"))
	if err != nil {
		return nil, err
	}

	date, err := ParseDate(r.PostFormValue("date"))
	if err != nil {
		return nil, err
	}

	return &AddServiceForm{
		ServiceType: r.PostFormValue("service_type"),
		Cost:        cost,
		Notes:       r.PostFormValue("notes"),
		Date:        date,
	}, nil
}

// ParseCost converts decimal text to a finite float.
func ParseCost(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidCost
	}

	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, ErrInvalidCost
	}
	return cost, nil
}

// ParseDate converts YYYY-MM-DD text to a UTC date. Blank input returns nil.
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	date, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &date, nil
}
