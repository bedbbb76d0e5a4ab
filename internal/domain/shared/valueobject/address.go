package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Address is a value object representing a shipping address.
// It is immutable - all operations return new Address instances.
type Address struct {
	line1      string
	line2      string
	city       string
	region     string
	postalCode string
	country    string
}

// AddressOption is a functional option for configuring Address
type AddressOption func(*Address)

// WithLine2 sets the secondary address line (apartment, suite)
func WithLine2(line2 string) AddressOption {
	return func(a *Address) {
		a.line2 = strings.TrimSpace(line2)
	}
}

// WithCountry sets the country; defaults to US
func WithCountry(country string) AddressOption {
	return func(a *Address) {
		a.country = strings.TrimSpace(country)
	}
}

// NewAddress creates a new Address. Line1, city, region and postal code
// are required.
func NewAddress(line1, city, region, postalCode string, opts ...AddressOption) (Address, error) {
	line1 = strings.TrimSpace(line1)
	city = strings.TrimSpace(city)
	region = strings.TrimSpace(region)
	postalCode = strings.TrimSpace(postalCode)

	if line1 == "" {
		return Address{}, errors.New("address line1 cannot be empty")
	}
	if len(line1) > 200 {
		return Address{}, errors.New("address line1 too long")
	}
	if city == "" {
		return Address{}, errors.New("address city cannot be empty")
	}
	if region == "" {
		return Address{}, errors.New("address region cannot be empty")
	}
	if postalCode == "" {
		return Address{}, errors.New("address postal code cannot be empty")
	}

	addr := Address{
		line1:      line1,
		city:       city,
		region:     region,
		postalCode: postalCode,
		country:    "US",
	}

	for _, opt := range opts {
		opt(&addr)
	}

	if addr.country == "" {
		return Address{}, errors.New("address country cannot be empty")
	}

	return addr, nil
}

// Line1 returns the primary street line
func (a Address) Line1() string { return a.line1 }

// Line2 returns the secondary street line
func (a Address) Line2() string { return a.line2 }

// City returns the city
func (a Address) City() string { return a.city }

// Region returns the state or province
func (a Address) Region() string { return a.region }

// PostalCode returns the postal code
func (a Address) PostalCode() string { return a.postalCode }

// Country returns the country code
func (a Address) Country() string { return a.country }

// IsZero returns true when the address carries no data
func (a Address) IsZero() bool {
	return a.line1 == "" && a.city == "" && a.region == "" && a.postalCode == ""
}

// String returns a single-line rendering suitable for labels and logs
func (a Address) String() string {
	parts := []string{a.line1}
	if a.line2 != "" {
		parts = append(parts, a.line2)
	}
	parts = append(parts, a.city, a.region, a.postalCode, a.country)
	return strings.Join(parts, ", ")
}

type addressJSON struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// MarshalJSON implements json.Marshaler
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{
		Line1:      a.line1,
		Line2:      a.line2,
		City:       a.city,
		Region:     a.region,
		PostalCode: a.postalCode,
		Country:    a.country,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Address) UnmarshalJSON(data []byte) error {
	var v addressJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.line1 = v.Line1
	a.line2 = v.Line2
	a.city = v.City
	a.region = v.Region
	a.postalCode = v.PostalCode
	a.country = v.Country
	return nil
}

// Value implements driver.Valuer; stored as a JSON column
func (a Address) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	data, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into Address", value)
	}

	return a.UnmarshalJSON(data)
}
