package wsguard

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeReporter struct {
	ips     []string
	origins []string
}

func (r *fakeReporter) FakeWebSocket(ip, origin string) {
	r.ips = append(r.ips, ip)
	r.origins = append(r.origins, origin)
}

func testGuard(rep Reporter) *Guard {
	return New(Config{
		Origins:     []string{"kiwiirc.com", "webchat.example.net"},
		ZLineSecs:   3600,
		ZLineReason: "Botnet detected using WebSockets!",
	}, rep)
}

func TestAllowedOrigin(t *testing.T) {
	g := testGuard(nil)

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"exact", "kiwiirc.com", true},
		{"with scheme", "https://kiwiirc.com", true},
		{"subdomain", "https://client.kiwiirc.com/path", true},
		{"second entry", "https://webchat.example.net", true},
		{"unknown", "https://botnet.example.org", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.AllowedOrigin(tt.origin); got != tt.want {
				t.Errorf("AllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	rep := &fakeReporter{}
	g := testGuard(rep)

	t.Run("non-websocket connection ignored", func(t *testing.T) {
		d := g.CheckOrigin("203.0.113.9", "")
		if !d.Allow || d.ZLine != nil {
			t.Errorf("got %+v, want plain allow", d)
		}
	})

	t.Run("allowed origin passes", func(t *testing.T) {
		d := g.CheckOrigin("203.0.113.9", "https://kiwiirc.com")
		if !d.Allow {
			t.Errorf("got %+v, want allow", d)
		}
	})

	t.Run("disallowed origin recommends zline", func(t *testing.T) {
		d := g.CheckOrigin("203.0.113.9", "https://botnet.example.org")
		if d.Allow {
			t.Fatal("disallowed origin allowed")
		}
		if d.ZLine == nil {
			t.Fatal("no zline recommendation")
		}
		if d.ZLine.DurationSecs != 3600 || d.ZLine.Reason != "Botnet detected using WebSockets!" {
			t.Errorf("zline = %+v, want configured duration/reason", d.ZLine)
		}
		if len(rep.origins) != 1 || rep.origins[0] != "https://botnet.example.org" {
			t.Errorf("reporter saw %v, want the rejected origin", rep.origins)
		}
	})
}

func TestHandler_RejectsDisallowedOrigin(t *testing.T) {
	rep := &fakeReporter{}
	g := testGuard(rep)

	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Origin", "https://botnet.example.org")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	if len(rep.origins) != 1 {
		t.Errorf("reporter saw %d rejections, want 1", len(rep.origins))
	}
}
