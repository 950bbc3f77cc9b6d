package webquote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ikggod/stock-dashboard/pkg/httpx"
	"github.com/ikggod/stock-dashboard/pkg/provider"
)

const samplePage = `
<div class="rate_info">
  <p class="no_today">
    <em class="no_up">
      <span class="blind">70,500</span>
    </em>
  </p>
  <p class="no_exday"><span class="blind">500</span></p>
</div>`

func TestFetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") != "005930" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := New(srv.URL, httpx.New(2*time.Second))
	price, err := c.FetchPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if price != 70500 {
		t.Errorf("price = %v, want 70500", price)
	}
}

func TestFetchPrice_NoPriceNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, httpx.New(2*time.Second))
	_, err := c.FetchPrice(context.Background(), "005930")
	if !errors.Is(err, provider.ErrNoPrice) {
		t.Errorf("err = %v, want ErrNoPrice", err)
	}
}
