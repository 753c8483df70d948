package prizepool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedSource blocks Fetch until release is closed.
type gatedSource struct {
	release chan struct{}
	snap    *domain.PrizePoolSnapshot
	err     error
	calls   atomic.Int32
}

func (s *gatedSource) Fetch(ctx context.Context) (*domain.PrizePoolSnapshot, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			// Deliver the result anyway to exercise the discard path.
		}
	}
	return s.snap, s.err
}

func TestDisplayLoadingThenResolved(t *testing.T) {
	src := &gatedSource{
		release: make(chan struct{}),
		snap:    &domain.PrizePoolSnapshot{CurrentPotSize: "12.3456", PotLimit: "100.0"},
	}
	d := NewDisplay(src, discardLogger())
	d.Mount(context.Background())

	v := d.View()
	if !v.Loading || v.CurrentPotSize != PlaceholderPotSize || v.PotLimit != PlaceholderPotLimit {
		t.Fatalf("pending view = %+v", v)
	}

	close(src.release)
	<-d.Done()

	v = d.View()
	want := View{CurrentPotSize: "12.3", PotLimit: "100."}
	if v != want {
		t.Fatalf("resolved view = %+v, want %+v", v, want)
	}
}

func TestDisplayMountIsSingleShot(t *testing.T) {
	src := &gatedSource{snap: &domain.PrizePoolSnapshot{CurrentPotSize: "1", PotLimit: "2"}}
	d := NewDisplay(src, discardLogger())
	d.Mount(context.Background())
	d.Mount(context.Background())
	<-d.Done()
	d.Mount(context.Background())

	if n := src.calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
	if v := d.View(); v.CurrentPotSize != "1" || v.PotLimit != "2" {
		t.Fatalf("short values should not be padded: %+v", v)
	}
}

func TestDisplayNoData(t *testing.T) {
	for name, src := range map[string]*gatedSource{
		"nil snapshot": {},
		"fetch error":  {err: errors.New("boom")},
	} {
		t.Run(name, func(t *testing.T) {
			d := NewDisplay(src, discardLogger())
			v, err := d.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if v != (View{}) {
				t.Fatalf("view = %+v, want empty", v)
			}
		})
	}
}

func TestDisplayUnmountDiscardsResult(t *testing.T) {
	src := &gatedSource{
		release: make(chan struct{}),
		snap:    &domain.PrizePoolSnapshot{CurrentPotSize: "9.99", PotLimit: "10"},
	}
	d := NewDisplay(src, discardLogger())
	d.Mount(context.Background())
	d.Unmount()
	<-d.Done()

	if v := d.View(); v != (View{}) {
		t.Fatalf("view after unmount = %+v, want empty", v)
	}
}

func TestDisplayLoadContextDone(t *testing.T) {
	src := &gatedSource{release: make(chan struct{})}
	d := NewDisplay(src, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := d.Load(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Load = %v, want deadline exceeded", err)
	}
}

func TestHTTPSource(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *domain.PrizePoolSnapshot
		wantErr bool
	}{
		{"ok", 200, `{"currentPotSize":"1.5","potLimit":"10"}`, &domain.PrizePoolSnapshot{CurrentPotSize: "1.5", PotLimit: "10"}, false},
		{"null", 200, `null`, nil, false},
		{"not found", 404, ``, nil, false},
		{"server error", 500, `oops`, nil, true},
		{"negative", 200, `{"currentPotSize":"-1","potLimit":"10"}`, nil, true},
		{"not decimal", 200, `{"currentPotSize":"abc","potLimit":"10"}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/prize-pool" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := NewHTTPSource(srv.URL+"/", time.Second).Fetch(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

type fakePoolReader struct {
	pot, limit *big.Int
	err        error
}

func (f fakePoolReader) CurrentPotSize(context.Context) (*big.Int, error) { return f.pot, f.err }
func (f fakePoolReader) PotLimit(context.Context) (*big.Int, error)       { return f.limit, f.err }

func TestChainSource(t *testing.T) {
	pot, _ := new(big.Int).SetString("12345000000000000000", 10)
	limit, _ := new(big.Int).SetString("100000000000000000000", 10)

	snap, err := NewChainSource(fakePoolReader{pot: pot, limit: limit}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.CurrentPotSize != "12.345" || snap.PotLimit != "100" {
		t.Fatalf("snapshot = %+v", snap)
	}

	if _, err := NewChainSource(fakePoolReader{err: errors.New("rpc down")}).Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
