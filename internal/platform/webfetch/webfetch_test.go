package webfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func articleHTML(words int) string {
	var b strings.Builder
	b.WriteString("<html><head><style>.x{color:red}</style>")
	b.WriteString("<script>var ignored = 'this script text must never count';</script></head><body>")
	b.WriteString("<header>Site header words here</header><nav>Home About Contact</nav><article><p>")
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%03d ", i)
	}
	b.WriteString("a an to</p></article><footer>Copyright footer text</footer></body></html>")
	return b.String()
}

func testOptions() Options { return Options{AllowPrivate: true} }

func TestVisibleTextStripsChrome(t *testing.T) {
	text, err := VisibleText([]byte(articleHTML(3)))
	if err != nil {
		t.Fatalf("VisibleText: %v", err)
	}
	for _, banned := range []string{"ignored", "header", "Contact", "Copyright", "color"} {
		if strings.Contains(text, banned) {
			t.Fatalf("text still contains %q: %q", banned, text)
		}
	}
	if !strings.Contains(text, "word000 word001 word002") {
		t.Fatalf("article text missing: %q", text)
	}
}

func TestVisibleTextSeparatesAdjacentElements(t *testing.T) {
	text, err := VisibleText([]byte("<p>alpha</p><p>beta</p><div>gamma<span>delta</span></div>"))
	if err != nil {
		t.Fatalf("VisibleText: %v", err)
	}
	if got := CountWords(text); got != 4 {
		t.Fatalf("CountWords(%q)=%d want 4", text, got)
	}
}

func TestCountWordsIgnoresShortTokens(t *testing.T) {
	if got := CountWords("a an the of sorting é él año"); got != 3 {
		t.Fatalf("CountWords=%d want 3", got)
	}
}

func TestVerifier(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DesktopUserAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, articleHTML(120))
	})
	mux.HandleFunc("/thin", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML(10))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := NewVerifier(2*time.Second, 50, testOptions())
	ctx := context.Background()

	got := v.Verify(ctx, srv.URL+"/ok")
	if !got.Valid || got.WordCount != 120 || got.Error != "" {
		t.Fatalf("ok page: %+v", got)
	}
	again := v.Verify(ctx, srv.URL+"/ok")
	if again != got {
		t.Fatalf("verdict not stable: %+v vs %+v", again, got)
	}

	thin := v.Verify(ctx, srv.URL+"/thin")
	if thin.Valid || thin.WordCount != 10 || thin.Error != "10 words (minimum 50)" {
		t.Fatalf("thin page: %+v", thin)
	}

	missing := v.Verify(ctx, srv.URL+"/missing")
	if missing.Valid || missing.Error != "HTTP 404" {
		t.Fatalf("missing page: %+v", missing)
	}

	bad := v.Verify(ctx, "http://127.0.0.1:1/unreachable")
	if bad.Valid || bad.Error == "" {
		t.Fatalf("unreachable: %+v", bad)
	}
}

func TestVerifierTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	v := NewVerifier(100*time.Millisecond, 50, testOptions())
	if got := v.Verify(context.Background(), srv.URL); got.Valid || got.Error == "" {
		t.Fatalf("expected timeout verdict, got %+v", got)
	}
}

func TestVerifierBlocksPrivateHosts(t *testing.T) {
	v := NewVerifier(time.Second, 50, Options{})
	got := v.Verify(context.Background(), "http://127.0.0.1:9/x")
	if got.Valid || !strings.Contains(got.Error, "blocked") {
		t.Fatalf("expected blocked verdict, got %+v", got)
	}
}

func TestResolverFollowsIndirection(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML(120))
	}))
	defer target.Close()
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("resolver used %s", r.Method)
		}
		http.Redirect(w, r, target.URL+"/article", http.StatusFound)
	}))
	defer redirector.Close()

	r := NewResolver(time.Second, []string{"grounding-api-redirect"}, testOptions())
	link := redirector.URL + "/grounding-api-redirect/AbC123"
	got := r.Resolve(context.Background(), link)
	if got != target.URL+"/article" {
		t.Fatalf("Resolve=%q want %q", got, target.URL+"/article")
	}

	v := NewVerifier(time.Second, 50, testOptions())
	if res := v.Verify(context.Background(), got); !res.Valid || res.WordCount != 120 {
		t.Fatalf("resolved page verdict: %+v", res)
	}
}

func TestResolverFailsOpen(t *testing.T) {
	loop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/grounding-api-redirect/again", http.StatusFound)
	}))
	defer loop.Close()

	r := NewResolver(time.Second, []string{"grounding-api-redirect"}, testOptions())
	ctx := context.Background()

	plain := "https://example.edu/article"
	if got := r.Resolve(ctx, plain); got != plain {
		t.Fatalf("non-indirection changed: %q", got)
	}
	link := loop.URL + "/grounding-api-redirect/x"
	if got := r.Resolve(ctx, link); got != link {
		t.Fatalf("redirect loop should return input, got %q", got)
	}
	dead := "http://127.0.0.1:1/grounding-api-redirect/x"
	if got := r.Resolve(ctx, dead); got != dead {
		t.Fatalf("unreachable should return input, got %q", got)
	}
}

func TestPageReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML(200))
	}))
	defer srv.Close()

	pr := NewPageReader(2*time.Second, testOptions())
	page, err := pr.Read(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if page.WordCount < 150 {
		t.Fatalf("WordCount=%d, text=%q", page.WordCount, page.Text)
	}
	if !strings.Contains(page.Text, "word100") {
		t.Fatalf("article body missing")
	}
}
