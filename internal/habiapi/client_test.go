package habiapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestOwned_ParsesContract(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clothing/owned" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"owned_clothing_ids":[1,3],"current_clothing_id":3}`))
	})

	owned, active, err := client.Owned(context.Background(), "tok")
	if err != nil {
		t.Fatalf("owned: %v", err)
	}
	if len(owned) != 2 || owned[0] != 1 || owned[1] != 3 {
		t.Errorf("unexpected owned set %v", owned)
	}
	if active == nil || *active != 3 {
		t.Errorf("unexpected active item %v", active)
	}
}

func TestOwned_NullActive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"owned_clothing_ids":[],"current_clothing_id":null}`))
	})

	owned, active, err := client.Owned(context.Background(), "tok")
	if err != nil {
		t.Fatalf("owned: %v", err)
	}
	if owned == nil || len(owned) != 0 {
		t.Errorf("expected empty non-nil owned set, got %v", owned)
	}
	if active != nil {
		t.Errorf("expected null active item, got %d", *active)
	}
}

func TestDo_401ReturnsErrUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := client.Owned(context.Background(), "expired")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestDo_NonOKCarriesDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"not enough coins"}`))
	})

	_, err := client.Purchase(context.Background(), "tok", 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Detail != "not enough coins" {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
	if apiErr.Error() != "not enough coins" {
		t.Errorf("expected detail to be the message, got %q", apiErr.Error())
	}
}

func TestDo_NonOKWithoutDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.Wear(context.Background(), "tok", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Error() != "request failed with status 500" {
		t.Errorf("unexpected generic message %q", apiErr.Error())
	}
}

func TestPurchase_DecodesReceipt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/clothing/purchase/7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"remaining_coins":50,"item_name":"Crown","item_icon":"x","cost":150}`))
	})

	receipt, err := client.Purchase(context.Background(), "tok", 7)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if receipt.RemainingCoins != 50 || receipt.ItemName != "Crown" || receipt.Cost != 150 {
		t.Errorf("unexpected receipt %+v", receipt)
	}
}

func TestCatalog_FallbackOnEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	items, err := client.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected fallback catalog, got empty list")
	}
}

func TestCatalog_FallbackOnNonArrayResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"oops":true}`))
	})

	items, err := client.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected fallback catalog on malformed payload")
	}
}

func TestCatalog_ServerListWins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":9,"name":"Cape","cost":70,"icon":"c","category":"back"}]`))
	})

	items, err := client.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(items) != 1 || items[0].ID != 9 || items[0].Name != "Cape" {
		t.Errorf("unexpected catalog %v", items)
	}
}

func TestLogin_SendsCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"token":"issued"}`))
	})

	resp, err := client.Login(context.Background(), "ana", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "issued" {
		t.Errorf("unexpected token %q", resp.Token)
	}
}
