package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"arbscan/internal/catalog"
)

// fakeCollectionSource - подменный CollectionSource
type fakeCollectionSource struct {
	col    *catalog.Collection
	found  bool
	err    error
	builds int
}

func (f *fakeCollectionSource) Cached() (*catalog.Collection, bool, error) {
	return f.col, f.found, f.err
}

func (f *fakeCollectionSource) ExchangesFor(_ context.Context, symbol string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.col != nil {
		if venues, ok := f.col.Venues(symbol); ok {
			return venues, nil
		}
	}
	return nil, &catalog.ErrUnknownSymbol{Symbol: symbol}
}

func (f *fakeCollectionSource) BuildAll(_ context.Context, _ catalog.BuildOptions) (*catalog.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.builds++
	return f.col, nil
}

func builtCollection() *catalog.Collection {
	col := catalog.NewCollection()
	col.Symbols["BTC/USDT"] = []string{"binance", "kraken"}
	col.Singletons["DOGE/USDT"] = "binance"
	return col
}

func TestGetCollection(t *testing.T) {
	tests := []struct {
		name       string
		source     *fakeCollectionSource
		wantStatus int
	}{
		{"built", &fakeCollectionSource{col: builtCollection(), found: true}, http.StatusOK},
		{"not built yet", &fakeCollectionSource{}, http.StatusNotFound},
		{"store error", &fakeCollectionSource{err: errors.New("corrupt store")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCollectionHandler(tt.source, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
			rec := httptest.NewRecorder()
			h.GetCollection(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), "BTC/USDT") {
				t.Errorf("collection body missing symbols: %s", rec.Body.String())
			}
		})
	}
}

func TestGetCollectionVenues(t *testing.T) {
	source := &fakeCollectionSource{col: builtCollection(), found: true}
	h := NewCollectionHandler(source, nil)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		contains   string
	}{
		{"multi-venue symbol", "/api/v1/collections/venues?symbol=BTC/USDT", http.StatusOK, `"kraken"`},
		{"singleton symbol", "/api/v1/collections/venues?symbol=DOGE/USDT", http.StatusOK, `"binance"`},
		{"unknown symbol", "/api/v1/collections/venues?symbol=XYZ/ABC", http.StatusNotFound, "unknown symbol"},
		{"malformed symbol", "/api/v1/collections/venues?symbol=BTCUSDT", http.StatusBadRequest, "invalid symbol"},
		{"missing symbol", "/api/v1/collections/venues", http.StatusBadRequest, "symbol is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			h.GetVenues(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %q must contain %q", rec.Body.String(), tt.contains)
			}
		})
	}
}

func TestCollectionRebuild(t *testing.T) {
	source := &fakeCollectionSource{col: builtCollection()}
	h := NewCollectionHandler(source, []string{"binance", "kraken"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/collections/rebuild", nil)
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if source.builds != 1 {
		t.Errorf("builds = %d, want 1", source.builds)
	}
	if !strings.Contains(rec.Body.String(), "collection rebuilt") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
