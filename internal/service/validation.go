package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

var (
	postalCodePattern = regexp.MustCompile(`^\d{4}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{4})$`)
	cvvPattern        = regexp.MustCompile(`^\d{3}$`)
)

const minPhoneDigits = 10

// NormalizeShipping trims every field.
func NormalizeShipping(s domain.Shipping) domain.Shipping {
	return domain.Shipping{
		Name:        strings.TrimSpace(s.Name),
		Address:     strings.TrimSpace(s.Address),
		City:        strings.TrimSpace(s.City),
		Province:    strings.TrimSpace(s.Province),
		PostalCode:  strings.TrimSpace(s.PostalCode),
		PhoneNumber: strings.TrimSpace(s.PhoneNumber),
	}
}

// ValidateShipping checks the shipping form. All fields are required, the
// phone number needs at least ten digits and the postal code is four digits.
func ValidateShipping(s domain.Shipping) error {
	s = NormalizeShipping(s)
	ve := &ValidationError{}

	required := []struct{ field, value string }{
		{"name", s.Name},
		{"address", s.Address},
		{"city", s.City},
		{"province", s.Province},
		{"postal_code", s.PostalCode},
		{"phone_number", s.PhoneNumber},
	}
	for _, r := range required {
		if r.value == "" {
			ve.add(r.field, "is required")
		}
	}

	if s.PhoneNumber != "" && !validPhone(s.PhoneNumber) {
		ve.add("phone_number", "must contain at least 10 digits")
	}
	if s.PostalCode != "" && !postalCodePattern.MatchString(s.PostalCode) {
		ve.add("postal_code", "must be exactly 4 digits")
	}
	return ve.orNil()
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits
}

// ValidateCard checks expiry (MM/YYYY, not before the current month) and CVV.
func ValidateCard(c domain.CardDetails, now time.Time) error {
	ve := &ValidationError{}

	expiry := strings.TrimSpace(c.Expiry)
	m := expiryPattern.FindStringSubmatch(expiry)
	switch {
	case expiry == "":
		ve.add("expiry", "is required")
	case m == nil:
		ve.add("expiry", "must be in MM/YYYY format")
	default:
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if year < now.Year() || (year == now.Year() && time.Month(month) < now.Month()) {
			ve.add("expiry", "card has expired")
		}
	}

	if !cvvPattern.MatchString(strings.TrimSpace(c.CVV)) {
		ve.add("cvv", "must be exactly 3 digits")
	}
	return ve.orNil()
}

// AddItemInput is the payload of an add-to-cart action.
type AddItemInput struct {
	ProductID int64
	Quantity  int
	Size      string
	ColorHex  string
}

func validateAddItem(in AddItemInput) error {
	ve := &ValidationError{}
	if in.ProductID <= 0 {
		ve.add("product_id", "must be a positive id")
	}
	if in.Quantity < 1 {
		ve.add("quantity", "must be at least 1")
	}
	if in.ColorHex != "" && !domain.ValidColorHex(in.ColorHex) {
		ve.add("color_hex", "must be a 6 or 8 digit hex color")
	}
	return ve.orNil()
}
