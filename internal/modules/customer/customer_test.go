package customer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"keeva/internal/maps"
)

type memStore struct {
	mu        sync.Mutex
	customers map[string]*Customer
}

func newMemStore(cs ...Customer) *memStore {
	m := &memStore{customers: map[string]*Customer{}}
	for i := range cs {
		c := cs[i]
		m.customers[c.ID] = &c
	}
	return m
}

func (m *memStore) Get(_ context.Context, id string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Addresses = append([]Address(nil), c.Addresses...)
	return &cp, nil
}

func (m *memStore) Ensure(_ context.Context, id, name, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		m.customers[id] = &Customer{ID: id, Name: name, Phone: phone}
	}
	return nil
}

func (m *memStore) ReplaceAddresses(_ context.Context, userID string, addrs []Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[userID]
	if !ok {
		return ErrNotFound
	}
	c.Addresses = append([]Address(nil), addrs...)
	return nil
}

type stubGeocoder struct {
	loc   maps.Location
	err   error
	calls int
}

func (g *stubGeocoder) Forward(_ context.Context, _ string) (maps.Location, error) {
	g.calls++
	return g.loc, g.err
}

func (g *stubGeocoder) Reverse(_ context.Context, _, _ float64) (maps.Address, error) {
	return maps.Address{City: "Pune"}, g.err
}

func fp(v float64) *float64 { return &v }

func TestSelectAddress(t *testing.T) {
	addrs := []Address{{ID: "a"}, {ID: "b", IsDefault: true}, {ID: "c"}}
	cases := []struct {
		id   string
		want string
	}{
		{"c", "c"},
		{"", "b"},
		{"missing", "b"},
	}
	for _, tc := range cases {
		got, ok := SelectAddress(addrs, tc.id)
		if !ok || got.ID != tc.want {
			t.Errorf("SelectAddress(%q) = %q, want %q", tc.id, got.ID, tc.want)
		}
	}

	got, ok := SelectAddress([]Address{{ID: "x"}, {ID: "y"}}, "")
	if !ok || got.ID != "x" {
		t.Errorf("expected first address, got %q", got.ID)
	}
	if _, ok := SelectAddress(nil, ""); ok {
		t.Error("expected no address")
	}
}

func TestBuildSnapshotDoesNotMutate(t *testing.T) {
	c := Customer{ID: "u1", Name: "Asha", Phone: "999"}
	addr := Address{ID: "a", Label: "Home", City: "Pune", Latitude: fp(18.5), Longitude: fp(73.8)}

	snap := BuildSnapshot(c, addr, Overrides{Latitude: fp(19), ContactPhone: "111"})
	*snap.Longitude = 0

	if *addr.Longitude != 73.8 {
		t.Fatal("snapshot shares memory with stored address")
	}
	if *snap.Latitude != 19 || snap.ContactPhone != "111" || snap.ContactName != "Asha" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	anon := BuildSnapshot(Customer{ID: "u2"}, Address{ID: "b"}, Overrides{})
	if anon.ContactName != "Customer" {
		t.Errorf("contact name fallback = %q", anon.ContactName)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	addrs := []Address{{ID: "a", IsDefault: true}, {ID: "b", IsDefault: true}, {ID: "c", IsDefault: true}}
	NormalizeDefaults(addrs, "b")
	for _, a := range addrs {
		if a.IsDefault != (a.ID == "b") {
			t.Fatalf("unexpected defaults %+v", addrs)
		}
	}

	NormalizeDefaults(addrs, "")
	count := 0
	for _, a := range addrs {
		if a.IsDefault {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one default, got %d", count)
	}
}

func TestSaveAddressKeepsSingleDefault(t *testing.T) {
	store := newMemStore(Customer{ID: "u1", Addresses: []Address{
		{ID: "a", City: "Pune", IsDefault: true, Latitude: fp(1), Longitude: fp(1)},
	}})
	geo := &stubGeocoder{loc: maps.Location{Lat: 12.9, Lng: 77.6}}
	svc := NewService(store, geo, nil)

	addrs, err := svc.SaveAddress(context.Background(), "u1", Address{City: "Bengaluru", IsDefault: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
	if addrs[0].IsDefault || !addrs[1].IsDefault {
		t.Fatalf("new default should replace old: %+v", addrs)
	}
	if addrs[1].Latitude == nil || *addrs[1].Latitude != 12.9 {
		t.Fatalf("expected geocoded coordinates, got %+v", addrs[1])
	}
	if geo.calls != 1 {
		t.Fatalf("geocoder calls = %d", geo.calls)
	}
}

func TestSaveAddressRejectsEmpty(t *testing.T) {
	svc := NewService(newMemStore(Customer{ID: "u1"}), nil, nil)
	if _, err := svc.SaveAddress(context.Background(), "u1", Address{Label: "Home"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestShippingAddress(t *testing.T) {
	store := newMemStore(Customer{ID: "u1", Name: "Ravi", Addresses: []Address{
		{ID: "a", City: "Pune"},
		{ID: "b", City: "Mumbai", IsDefault: true},
	}})
	geo := &stubGeocoder{err: errors.New("quota")}
	svc := NewService(store, geo, nil)

	snap, err := svc.ShippingAddress(context.Background(), "u1", "", Overrides{})
	if err != nil {
		t.Fatalf("shipping address: %v", err)
	}
	if snap.City != "Mumbai" || snap.HasCoordinates() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := svc.ShippingAddress(context.Background(), "nobody", "", Overrides{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = store.Ensure(context.Background(), "u2", "", "")
	if _, err := svc.ShippingAddress(context.Background(), "u2", "", Overrides{}); !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
}
