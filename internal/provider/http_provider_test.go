package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestProvider(handler http.HandlerFunc) (*HTTPChannelProvider, *httptest.Server) {
	srv := httptest.NewServer(handler)
	p := NewHTTPChannelProvider(&HTTPProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
	return p, srv
}

func TestHTTPChannelProvider_GetChannelMetadata(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v1/channels/t7_group_99" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"channel_id":"t7_group_99","kind":"group","tenant_tag":"t7","owner_id":"user-1","member_count":3}}`))
	})
	defer srv.Close()

	info, err := p.GetChannelMetadata(context.Background(), "t7_group_99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OwnerID != "user-1" {
		t.Errorf("expected owner user-1, got %s", info.OwnerID)
	}
	if info.TenantTag != "t7" {
		t.Errorf("expected tenant tag t7, got %s", info.TenantTag)
	}
}

func TestHTTPChannelProvider_NotFound(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := p.GetChannelMetadata(context.Background(), "t7_group_missing")
	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestHTTPChannelProvider_ServerErrorIsRetryable(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	err := p.DeleteChannel(context.Background(), "t7_group_99", true)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPChannelProvider_TimeoutIsRetryable(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()
	p.httpClient.Timeout = 50 * time.Millisecond

	err := p.DeleteChannel(context.Background(), "t7_group_99", false)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
}

func TestHTTPChannelProvider_DeleteChannelHardFlag(t *testing.T) {
	var gotHard string
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		gotHard = r.URL.Query().Get("hard")
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	if err := p.DeleteChannel(context.Background(), "t7_group_99", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotHard != "true" {
		t.Errorf("expected hard=true, got %q", gotHard)
	}
}

func TestHTTPChannelProvider_SoftDeleteMessagesForUser(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/v1/channels/t7_direct_abc/users/user-2/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"deleted_count":17}}`))
	})
	defer srv.Close()

	count, err := p.SoftDeleteMessagesForUser(context.Background(), "t7_direct_abc", "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 17 {
		t.Errorf("expected 17 deleted messages, got %d", count)
	}
}
