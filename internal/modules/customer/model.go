// README: Customer profile with embedded address book and the order-time address snapshot.
package customer

import "strings"

type Address struct {
	ID        string   `json:"id"`
	Label     string   `json:"label,omitempty"`
	HouseNo   string   `json:"houseNo,omitempty"`
	Street    string   `json:"street,omitempty"`
	Landmark  string   `json:"landmark,omitempty"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Pincode   string   `json:"pincode,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	IsDefault bool     `json:"isDefault"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Addresses []Address `json:"addresses"`
}

// Snapshot is a copy of an address taken when an order is placed.
type Snapshot struct {
	Label        string   `json:"label,omitempty"`
	HouseNo      string   `json:"houseNo,omitempty"`
	Street       string   `json:"street,omitempty"`
	Landmark     string   `json:"landmark,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Pincode      string   `json:"pincode,omitempty"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	IsDefault    bool     `json:"isDefault"`
	ContactName  string   `json:"contactName"`
	ContactPhone string   `json:"contactPhone,omitempty"`
}

// Overrides are request-level tweaks applied to the snapshot only.
type Overrides struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	IsDefault    *bool    `json:"isDefault"`
	ContactName  string   `json:"contactName"`
	ContactPhone string   `json:"contactPhone"`
}

// SelectAddress picks addressID if present, else the default, else the first address.
func SelectAddress(addrs []Address, addressID string) (Address, bool) {
	if addressID != "" {
		for _, a := range addrs {
			if a.ID == addressID {
				return a, true
			}
		}
	}
	for _, a := range addrs {
		if a.IsDefault {
			return a, true
		}
	}
	if len(addrs) > 0 {
		return addrs[0], true
	}
	return Address{}, false
}

// BuildSnapshot copies a and applies ov. The stored address is never modified.
func BuildSnapshot(c Customer, a Address, ov Overrides) Snapshot {
	s := Snapshot{
		Label:     a.Label,
		HouseNo:   a.HouseNo,
		Street:    a.Street,
		Landmark:  a.Landmark,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		Latitude:  copyFloat(a.Latitude),
		Longitude: copyFloat(a.Longitude),
		IsDefault: a.IsDefault,
	}
	if ov.Latitude != nil {
		s.Latitude = copyFloat(ov.Latitude)
	}
	if ov.Longitude != nil {
		s.Longitude = copyFloat(ov.Longitude)
	}
	if ov.IsDefault != nil {
		s.IsDefault = *ov.IsDefault
	}
	s.ContactName = firstNonEmpty(ov.ContactName, c.Name, a.Label, "Customer")
	s.ContactPhone = firstNonEmpty(ov.ContactPhone, c.Phone)
	return s
}

// HasCoordinates reports whether both coordinates are known.
func (s Snapshot) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Line renders the address as one geocodable string.
func (a Address) Line() string {
	return joinNonEmpty(a.HouseNo, a.Street, a.Landmark, a.City, a.State, a.Pincode)
}

// Line renders the snapshot as one geocodable string.
func (s Snapshot) Line() string {
	return joinNonEmpty(s.HouseNo, s.Street, s.Landmark, s.City, s.State, s.Pincode)
}

// NormalizeDefaults leaves at most one default address. preferred wins when it is
// flagged; otherwise the first flagged address keeps the flag.
func NormalizeDefaults(addrs []Address, preferred string) {
	keep := -1
	for i, a := range addrs {
		if !a.IsDefault {
			continue
		}
		if a.ID == preferred && preferred != "" {
			keep = i
			break
		}
		if keep < 0 {
			keep = i
		}
	}
	for i := range addrs {
		addrs[i].IsDefault = i == keep
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
