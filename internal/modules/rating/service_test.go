package rating

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeva/internal/modules/order"
)

type memStore struct {
	pairs  map[string]Pair
	riders map[string]bool
}

func newMemStore(riders ...string) *memStore {
	m := &memStore{pairs: map[string]Pair{}, riders: map[string]bool{}}
	for _, r := range riders {
		m.riders[r] = true
	}
	return m
}

func (m *memStore) Insert(_ context.Context, p Pair) (float64, error) {
	k := p.Order.OrderID + "/" + p.Order.UserID
	if _, ok := m.pairs[k]; ok {
		return 0, ErrConflict
	}
	if !m.riders[p.Rider.RiderID] {
		return 0, ErrRiderNotFound
	}
	m.pairs[k] = p
	sum, n := 0, 0
	for _, v := range m.pairs {
		if v.Rider.RiderID == p.Rider.RiderID {
			sum += v.Rider.Rating
			n++
		}
	}
	return math.Round(float64(sum)/float64(n)*10) / 10, nil
}

func (m *memStore) Find(_ context.Context, orderID, userID string) (*Pair, error) {
	p, ok := m.pairs[orderID+"/"+userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ForRider(_ context.Context, riderID string) ([]RiderRating, error) {
	var out []RiderRating
	for _, p := range m.pairs {
		if p.Rider.RiderID == riderID {
			out = append(out, p.Rider)
		}
	}
	return out, nil
}

func (m *memStore) List(_ context.Context, userID string) (Listing, error) {
	var l Listing
	for _, p := range m.pairs {
		if userID == "" || p.Order.UserID == userID {
			l.OrderRatings = append(l.OrderRatings, p.Order)
			l.RiderRatings = append(l.RiderRatings, p.Rider)
		}
	}
	return l, nil
}

type orderMap map[string]*order.Order

func (m orderMap) Find(_ context.Context, ref string) (*order.Order, error) {
	if o, ok := m[ref]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

func deliveredOrder() *order.Order {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:      "o1",
		OrderID: "ORD1",
		UserID:  "u1",
		Status:  order.StatusDelivered,
		History: []order.HistoryEntry{
			{Status: order.StatusPending, By: order.UserRef("u1"), Role: "customer", At: at},
			{Status: order.StatusAssigned, By: order.PartnerRef("pk1"), Role: "picker", At: at},
			{Status: order.StatusDelivered, By: order.PartnerRef("rd1"), Role: "rider", At: at},
			{Status: order.StatusDelivered, By: order.UserRef("admin1"), Role: "admin", At: at},
		},
	}
}

func TestRiderOfPicksLatestPartner(t *testing.T) {
	assert.Equal(t, "rd1", RiderOf(deliveredOrder()))
	assert.Empty(t, RiderOf(&order.Order{History: []order.HistoryEntry{{By: order.UserRef("u1")}}}))
}

func TestRate(t *testing.T) {
	store := newMemStore("rd1")
	s := NewService(store, orderMap{"ORD1": deliveredOrder()}, nil)
	ctx := context.Background()

	p, err := s.Rate(ctx, RateCommand{UserID: "u1", OrderRef: "ORD1", Order: Score{Rating: 5}, Rider: Score{Rating: 4, ReviewText: "quick"}})
	require.NoError(t, err)
	assert.Equal(t, "rd1", p.Rider.RiderID)
	assert.Equal(t, "o1", p.Order.OrderID)

	_, err = s.Rate(ctx, RateCommand{UserID: "u1", OrderRef: "ORD1", Order: Score{Rating: 5}, Rider: Score{Rating: 4}})
	assert.ErrorIs(t, err, ErrConflict)

	st, err := s.Status(ctx, "u1", "ORD1")
	require.NoError(t, err)
	assert.True(t, st.CanRate)
	assert.True(t, st.HasRated)
	require.NotNil(t, st.Ratings)
	assert.Equal(t, "quick", st.Ratings.Rider.ReviewText)
}

func TestRateValidation(t *testing.T) {
	pending := deliveredOrder()
	pending.ID, pending.OrderID, pending.Status = "o2", "ORD2", order.StatusOutForDelivery
	noRider := deliveredOrder()
	noRider.ID, noRider.OrderID = "o3", "ORD3"
	noRider.History = noRider.History[:1]

	s := NewService(newMemStore("rd1"), orderMap{"ORD1": deliveredOrder(), "ORD2": pending, "ORD3": noRider}, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  RateCommand
		want error
	}{
		{"order rating too low", RateCommand{UserID: "u1", OrderRef: "ORD1", Order: Score{Rating: 0}, Rider: Score{Rating: 3}}, ErrBadRequest},
		{"rider rating too high", RateCommand{UserID: "u1", OrderRef: "ORD1", Order: Score{Rating: 3}, Rider: Score{Rating: 6}}, ErrBadRequest},
		{"unknown order", RateCommand{UserID: "u1", OrderRef: "nope", Order: Score{Rating: 3}, Rider: Score{Rating: 3}}, order.ErrNotFound},
		{"someone else's order", RateCommand{UserID: "u2", OrderRef: "ORD1", Order: Score{Rating: 3}, Rider: Score{Rating: 3}}, ErrForbidden},
		{"not delivered", RateCommand{UserID: "u1", OrderRef: "ORD2", Order: Score{Rating: 3}, Rider: Score{Rating: 3}}, ErrBadRequest},
		{"no rider", RateCommand{UserID: "u1", OrderRef: "ORD3", Order: Score{Rating: 3}, Rider: Score{Rating: 3}}, ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Rate(ctx, tc.cmd)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStatusBeforeDelivery(t *testing.T) {
	o := deliveredOrder()
	o.Status = order.StatusAccepted
	s := NewService(newMemStore(), orderMap{"ORD1": o}, nil)

	st, err := s.Status(context.Background(), "u1", "ORD1")
	require.NoError(t, err)
	assert.False(t, st.CanRate)
	assert.False(t, st.HasRated)
	assert.Nil(t, st.Ratings)

	_, err = s.Status(context.Background(), "u9", "ORD1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListings(t *testing.T) {
	other := deliveredOrder()
	other.ID, other.OrderID, other.UserID = "o2", "ORD2", "u2"
	s := NewService(newMemStore("rd1"), orderMap{"ORD1": deliveredOrder(), "ORD2": other}, nil)
	ctx := context.Background()

	_, err := s.Rate(ctx, RateCommand{UserID: "u1", OrderRef: "ORD1", Order: Score{Rating: 5}, Rider: Score{Rating: 4}})
	require.NoError(t, err)
	_, err = s.Rate(ctx, RateCommand{UserID: "u2", OrderRef: "ORD2", Order: Score{Rating: 2}, Rider: Score{Rating: 1}})
	require.NoError(t, err)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all.OrderRatings, 2)
	assert.Len(t, all.RiderRatings, 2)

	mine, err := s.ForUser(ctx, "u1", "u1")
	require.NoError(t, err)
	require.Len(t, mine.OrderRatings, 1)
	assert.Equal(t, "o1", mine.OrderRatings[0].OrderID)
	assert.Equal(t, "rd1", mine.RiderRatings[0].RiderID)

	_, err = s.ForUser(ctx, "u1", "u2")
	assert.ErrorIs(t, err, ErrForbidden)

	none, err := s.ForUser(ctx, "u3", "u3")
	require.NoError(t, err)
	assert.NotNil(t, none.OrderRatings)
	assert.Empty(t, none.RiderRatings)
}
