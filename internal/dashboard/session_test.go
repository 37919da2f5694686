package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/franz/culture-recs/internal/api"
	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/table"
)

func testCatalog(t *testing.T) *recommend.Catalog {
	t.Helper()

	films := table.New("titre", "auteur", "genre", "annee", "source")
	for _, r := range [][]string{
		{"Alien", "Ridley Scott", "SF", "1979", "https://example/1"},
		{"Aliens", "James Cameron", "SF", "1986", "https://example/2"},
		{"Heat", "Michael Mann", "Crime", "1995", "https://example/3"},
		{"Le Cinquième Élément", "Luc Besson", "SF", "1997", "https://example/4"},
	} {
		if err := films.AppendRow(table.String(r[0]), table.String(r[1]), table.String(r[2]), table.String(r[3]), table.String(r[4])); err != nil {
			t.Fatal(err)
		}
	}

	books := table.New("titre", "auteur")
	_ = books.AppendRow(table.String("Dune"), table.String("Frank Herbert"))
	_ = books.AppendRow(table.String("Le Messie de Dune"), table.String("Frank Herbert"))

	music := table.New("titre", "artiste")
	_ = music.AppendRow(table.String("La Bohème"), table.String("Charles Aznavour"))

	return recommend.NewCatalog(map[clean.Domain]*table.Table{
		clean.Film:  films,
		clean.Book:  books,
		clean.Music: music,
	})
}

func newTestSession(t *testing.T, apiProvider *APIProvider) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := New(&Config{Catalog: testCatalog(t), API: apiProvider, Out: &out, Width: 120, Domain: clean.Film, Seed: 3})
	return s, &out
}

type stubProvider struct {
	name    string
	records []table.Record
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Lookup(ctx context.Context, d recommend.Domain, title string) ([]table.Record, error) {
	p.calls++
	return p.records, p.err
}

func titles(n int) []table.Record {
	out := make([]table.Record, n)
	for i := range out {
		out[i] = table.NewRecord([]string{"titre"}, []any{string(rune('A' + i))})
	}
	return out
}

func TestChainOrder(t *testing.T) {
	down := &stubProvider{name: "API", err: ErrUnavailable}
	empty := &stubProvider{name: "modules", records: nil}
	sample := &stubProvider{name: "simulation", records: titles(2)}

	tests := []struct {
		name     string
		chain    *Chain
		provider string
		records  int
	}{
		{"first success wins even when empty", NewChain(down, empty, sample), "modules", 0},
		{"eager chain skips empty answers", NewEagerChain(down, empty, sample), "simulation", 2},
		{"eager chain returns last empty answer", NewEagerChain(down, empty), "modules", 0},
		{"nil tiers are dropped", NewChain(nil, sample), "simulation", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := tt.chain.Lookup(context.Background(), clean.Film, "x")
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if answer.Provider != tt.provider || len(answer.Records) != tt.records {
				t.Errorf("answer = %s with %d records", answer.Provider, len(answer.Records))
			}
		})
	}

	_, err := NewChain(down).Lookup(context.Background(), clean.Film, "x")
	if !errors.Is(err, ErrNoProvider) || !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected joined ErrNoProvider, got %v", err)
	}
}

func TestSimilarFallsBackToLocal(t *testing.T) {
	// API never probed, so the local tier answers
	s, out := newTestSession(t, NewAPIProvider("http://127.0.0.1:1", time.Second))

	if _, err := s.Execute(context.Background(), "similar alien"); err != nil {
		t.Fatalf("similar failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Titres similaires à 'alien' (via modules)", "1. Alien", "2. Aliens"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	s.Execute(context.Background(), "similar zzz")
	if !strings.Contains(out.String(), "Aucun titre similaire trouvé.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSampleProvider(t *testing.T) {
	p := NewSampleProvider(testCatalog(t), 9)
	records, err := p.Lookup(context.Background(), clean.Film, "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Errorf("sample = %d records, expected all 4 titles", len(records))
	}
	seen := map[string]bool{}
	for _, r := range records {
		if seen[r.GetString("titre")] {
			t.Errorf("title %q sampled twice", r.GetString("titre"))
		}
		seen[r.GetString("titre")] = true
	}

	if NewSampleProvider(nil, 1) != nil || NewLocalProvider(nil) != nil {
		t.Error("nil catalog should yield nil providers")
	}
}

func TestAPIProviderAgainstServer(t *testing.T) {
	srv := httptest.NewServer(api.New(&api.Config{Catalog: testCatalog(t), Seed: 1}).Handler())
	defer srv.Close()

	p := NewAPIProvider(srv.URL, time.Second)
	if _, err := p.Lookup(context.Background(), clean.Film, "heat"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unprobed provider should be unavailable, got %v", err)
	}
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	records, err := p.Lookup(context.Background(), clean.Film, "le cinquième")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(records) != 1 || records[0].GetString("titre") != "Le Cinquième Élément" {
		t.Errorf("records = %v", records)
	}
	if records[0].GetString("annee") != "1997" {
		t.Errorf("annee = %q", records[0].GetString("annee"))
	}

	s, out := newTestSession(t, p)
	s.Execute(context.Background(), "similar heat")
	if !strings.Contains(out.String(), "(via API)") {
		t.Errorf("expected API tier, got %q", out.String())
	}
}

func TestAPIProviderBreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`[]`)) // probe
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, time.Second)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := p.Lookup(context.Background(), clean.Book, "dune"); err == nil {
			t.Fatal("expected upstream error")
		}
	}
	_, err := p.Lookup(context.Background(), clean.Book, "dune")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected open circuit, got %v", err)
	}
	if calls != 4 {
		t.Errorf("server calls = %d, open circuit should not reach the server", calls)
	}
}

func TestProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, 0)
	if err := p.Probe(context.Background()); !errors.Is(err, ErrUnavailable) || p.Available() {
		t.Errorf("expected unavailable after 503 probe, got %v", err)
	}
}

func TestChat(t *testing.T) {
	s, out := newTestSession(t, nil)

	response := s.Chat(context.Background(), "Alien movies please")
	lines := strings.Split(response, "\n")
	if lines[0] != "Voici des recommandations de films basées sur votre demande concernant 'alien movies' :" {
		t.Errorf("intro = %q", lines[0])
	}
	if !strings.Contains(response, noResults) {
		t.Errorf("two-word term should not match: %q", response)
	}

	response = s.Chat(context.Background(), "ALIEN")
	if !strings.Contains(response, "1. Alien\n2. Aliens") {
		t.Errorf("response = %q", response)
	}

	if got := len(s.History()); got != 5 {
		t.Errorf("history = %d messages, expected greeting + 2 exchanges", got)
	}
	s.Execute(context.Background(), "reset")
	if len(s.History()) != 1 || s.History()[0].Content != greeting {
		t.Errorf("history after reset = %v", s.History())
	}
	if !strings.Contains(out.String(), "Discussion réinitialisée.") {
		t.Error("reset should be acknowledged")
	}
}

func TestChatCapsResults(t *testing.T) {
	var out bytes.Buffer
	many := &stubProvider{name: "API", records: titles(8)}
	s := New(&Config{Catalog: testCatalog(t), Out: &out, Width: 80, Seed: 1})
	s.chat = NewEagerChain(many)

	response := s.Chat(context.Background(), "n'importe quoi")
	if !strings.Contains(response, "5. E") || strings.Contains(response, "6. F") {
		t.Errorf("chat should list at most 5 results: %q", response)
	}
}

func TestSearchTerm(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"Dune":                 "dune",
		"le  Seigneur des":     "le seigneur",
		"  Harry Potter et la": "harry potter",
	}
	for in, want := range tests {
		if got := searchTerm(in); got != want {
			t.Errorf("searchTerm(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr error
	}{
		{line: "type livres", want: []string{"Données Livres chargées avec succès! (2 lignes)"}},
		{line: "type jeux", wantErr: errors.New("domain")},
		{line: "type", wantErr: ErrUsage},
		{line: "preview", want: []string{"Aperçu des données (Films)", "Ridley Scott", "Luc Besson"}},
		{line: "search crime", want: []string{"1 résultats trouvés", "Heat"}},
		{line: "search nothing-matches", want: []string{"Aucun résultat trouvé pour ces mots-clés."}},
		{line: "search", wantErr: ErrUsage},
		{line: "similar", wantErr: ErrUsage},
		{line: "prefs genre=SF", want: []string{"Recommandations personnalisées", "TITRE", "AUTEUR", "ANNEE"}},
		{line: "prefs sf", wantErr: ErrUsage},
		{line: "help", want: []string{"similar <titre>"}},
		{line: "dance", wantErr: ErrUsage},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s, out := newTestSession(t, nil)
			quit, err := s.Execute(context.Background(), tt.line)
			if quit {
				t.Fatal("unexpected quit")
			}
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error, got output %q", out.String())
				}
				if errors.Is(tt.wantErr, ErrUsage) && !errors.Is(err, ErrUsage) {
					t.Errorf("expected usage error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestPrefsLimitsColumns(t *testing.T) {
	s, out := newTestSession(t, nil)
	if _, err := s.Execute(context.Background(), "prefs"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "SOURCE") {
		t.Errorf("prefs should show the title and three other columns:\n%s", out.String())
	}
}

func TestRunReadsUntilQuit(t *testing.T) {
	var out bytes.Buffer
	s := New(&Config{
		Catalog: testCatalog(t),
		In:      strings.NewReader("type musiques\nsimilar bohème\nquit\nsimilar never\n"),
		Out:     &out,
		Width:   80,
		Seed:    1,
	})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, greeting) || !strings.Contains(got, "1. La Bohème") {
		t.Errorf("output = %q", got)
	}
	if strings.Contains(got, "never") || s.Domain() != clean.Music {
		t.Errorf("commands after quit must not run; domain = %s", s.Domain())
	}
}

// endlessLines never reaches EOF
type endlessLines struct{}

func (endlessLines) Read(p []byte) (int, error) {
	for i := range p {
		if i%2 == 0 {
			p[i] = 'x'
		} else {
			p[i] = '\n'
		}
	}
	return len(p), nil
}

func TestReadLinesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines, _ := readLines(ctx, endlessLines{})

	if got := <-lines; got != "x" {
		t.Fatalf("first line = %q", got)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("line reader kept running after cancellation")
		}
	}
}

func TestReadLinesReportsEOF(t *testing.T) {
	lines, scanErr := readLines(context.Background(), strings.NewReader("a\nb\n"))

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("lines = %v", got)
	}
	if err := <-scanErr; err != nil {
		t.Errorf("scan error = %v", err)
	}
}
