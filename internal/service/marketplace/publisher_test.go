package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmchain/internal/domain/models"
	"github.com/mamadbah2/farmchain/internal/repository/memory"
	client "github.com/mamadbah2/farmchain/pkg/clients/marketplace"
)

func sampleListing() models.Listing {
	return models.Listing{
		BatchID:           "B",
		CropID:            "c1",
		FarmerID:          "f1",
		DistributorID:     "d1",
		Quantity:          decimal.RequireFromString("40"),
		Price:             decimal.RequireFromString("12"),
		FarmerProfit:      decimal.RequireFromString("1"),
		DistributorProfit: decimal.RequireFromString("1"),
	}
}

func TestStorePublisherIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	pub := NewStorePublisher(store, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := pub.CreateOrActivate(ctx, sampleListing()); err != nil {
			t.Fatalf("publish #%d: %v", i, err)
		}
	}

	listings, err := pub.ListingsForBatch(ctx, "B")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listings) != 1 || listings[0].Status != models.ListingStatusActive {
		t.Fatalf("want one active listing, got %+v", listings)
	}
}

func TestStorePublisherRequiresKey(t *testing.T) {
	pub := NewStorePublisher(memory.NewStore(), nil)
	l := sampleListing()
	l.CropID = ""
	if err := pub.CreateOrActivate(context.Background(), l); err == nil {
		t.Fatalf("expected an error for a listing without crop id")
	}
}

func TestHTTPPublisher(t *testing.T) {
	var body client.ListingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"remote-1"}`))
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(client.NewClient(srv.URL, "", time.Second), nil)
	if err := pub.CreateOrActivate(context.Background(), sampleListing()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if body.Quantity != "40.00" || body.Price != "12.00" || body.FarmerProfit != "1.00" || body.Status != models.ListingStatusActive {
		t.Fatalf("unexpected request body: %+v", body)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) CreateOrActivate(context.Context, models.Listing) error {
	f.calls++
	return errors.New("marketplace down")
}

func TestChainStopsAtFirstError(t *testing.T) {
	store := memory.NewStore()
	failing := &failingPublisher{}
	after := &failingPublisher{}
	chain := Chain{NewStorePublisher(store, nil), failing, after}

	if err := chain.CreateOrActivate(context.Background(), sampleListing()); err == nil {
		t.Fatalf("expected the chain to fail")
	}
	if failing.calls != 1 || after.calls != 0 {
		t.Fatalf("calls: failing=%d after=%d", failing.calls, after.calls)
	}
	listings, _ := store.FindListingsByBatch(context.Background(), "B")
	if len(listings) != 1 {
		t.Fatalf("local listing should be kept, got %d", len(listings))
	}
}
