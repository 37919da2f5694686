package dashboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

const (
	greeting  = "Bonjour ! Je suis votre assistant de recommandation. Comment puis-je vous aider aujourd'hui ?"
	noResults = "Désolé, je n'ai pas trouvé de recommandations correspondant à votre demande. Pourriez-vous préciser davantage ?"

	// chatResults caps the numbered lines of a chat answer
	chatResults = 5
	// searchRows caps the rows drawn for a keyword search
	searchRows = 20
	// previewRows is the number of rows shown by preview
	previewRows = 5
	// prefsColumns is how many columns besides the title prefs shows
	prefsColumns = 3
)

// ErrUsage is returned for malformed commands
var ErrUsage = errors.New("usage")

// Message is one chat history entry
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Config holds session configuration
type Config struct {
	Catalog *recommend.Catalog
	// API is the live tier; nil runs on the in-process catalog only
	API *APIProvider
	In  io.Reader
	Out io.Writer
	// Width bounds table rendering; zero uses the terminal width
	Width int
	// Domain is the initially selected content type (default books)
	Domain recommend.Domain
	Seed   uint64
}

// Session is an interactive recommendation session
type Session struct {
	catalog *recommend.Catalog
	api     *APIProvider
	in      io.Reader
	out     io.Writer
	width   int
	domain  recommend.Domain
	rng     *rand.Rand

	similar *Chain
	chat    *Chain
	history []Message
}

// New creates a new Session
func New(cfg *Config) *Session {
	if cfg.Domain == "" {
		cfg.Domain = clean.Book
	}
	if cfg.Width == 0 {
		cfg.Width = util.GetTerminalWidth()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	var api Provider
	if cfg.API != nil {
		api = cfg.API
	}
	local := NewLocalProvider(cfg.Catalog)

	s := &Session{
		catalog: cfg.Catalog,
		api:     cfg.API,
		in:      cfg.In,
		out:     cfg.Out,
		width:   cfg.Width,
		domain:  cfg.Domain,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		similar: NewChain(api, local, NewSampleProvider(cfg.Catalog, seed)),
		chat:    NewEagerChain(api, local),
	}
	s.Reset()
	return s
}

// Domain returns the selected content type
func (s *Session) Domain() recommend.Domain {
	return s.domain
}

// History returns the chat history, greeting first
func (s *Session) History() []Message {
	return s.history
}

// Reset clears the chat history
func (s *Session) Reset() {
	s.history = []Message{{Role: "assistant", Content: greeting}}
}

// Run probes the API then reads commands until quit, EOF or ctx is done
func (s *Session) Run(ctx context.Context) error {
	if s.api != nil {
		if err := s.api.Probe(ctx); err != nil {
			util.WarnLog("API unavailable, using local catalog: %v", err)
		} else {
			util.SuccessLog("API connected")
		}
	}

	fmt.Fprintln(s.out, "Système de Recommandation Intelligent. Tapez 'help' pour la liste des commandes.")
	fmt.Fprintln(s.out, greeting)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, scanErr := readLines(ctx, s.in)

	for {
		fmt.Fprintf(s.out, "crs[%s]> ", s.domain.Collection())
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				// closed by cancellation carries no scan error
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := s.Execute(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "Erreur: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs one command line. It reports whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		s.help()
	case "type":
		return false, s.cmdType(args)
	case "preview":
		return false, s.cmdPreview()
	case "search":
		return false, s.cmdSearch(args)
	case "similar":
		return false, s.cmdSimilar(ctx, strings.Join(args, " "))
	case "prefs":
		return false, s.cmdPrefs(args)
	case "chat":
		s.Chat(ctx, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0])))
	case "history":
		for _, m := range s.history {
			fmt.Fprintf(s.out, "[%s] %s\n", m.Role, m.Content)
		}
	case "reset":
		s.Reset()
		fmt.Fprintln(s.out, "Discussion réinitialisée.")
	default:
		return false, fmt.Errorf("%w: unknown command %q (try 'help')", ErrUsage, cmd)
	}
	return false, nil
}

func (s *Session) help() {
	fmt.Fprint(s.out, `Commandes:
  type <livres|films|musiques>   choisir le type de contenu
  preview                        aperçu des données
  search <mots-clés...>          recherche par mots-clés (toutes colonnes)
  similar <titre>                titres similaires
  prefs [genre=..] [auteur=..]   recommandation personnalisée
  chat <message>                 assistant de recommandation
  history                        historique de la discussion
  reset                          réinitialiser la discussion
  quit                           quitter
`)
}

func (s *Session) label() string {
	return cases.Title(language.French).String(s.domain.Collection())
}

func (s *Session) cmdType(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: type <livres|films|musiques>", ErrUsage)
	}
	d, err := clean.ParseDomain(args[0])
	if err != nil {
		return err
	}
	s.domain = d
	fmt.Fprintf(s.out, "Données %s chargées avec succès! (%s lignes)\n", s.label(), util.FormatCount(s.catalog.Len(d)))
	return nil
}

func (s *Session) cmdPreview() error {
	t, err := s.catalog.Table(s.domain)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Aperçu des données (%s)\n", s.label())
	fmt.Fprintln(s.out, renderTable(t.Head(previewRows), s.width))
	return nil
}

func (s *Session) cmdSearch(words []string) error {
	if len(words) == 0 {
		return fmt.Errorf("%w: search <mots-clés...>", ErrUsage)
	}
	res, err := s.catalog.Keyword(s.domain, words, searchRows)
	if err != nil {
		return fmt.Errorf("recherche: %w", err)
	}
	if res.Total == 0 {
		fmt.Fprintln(s.out, "Aucun résultat trouvé pour ces mots-clés.")
		return nil
	}
	fmt.Fprintf(s.out, "%s résultats trouvés\n", util.FormatCount(res.Total))
	fmt.Fprintln(s.out, renderRecords(res.Records, s.width))
	if res.Total > len(res.Records) {
		fmt.Fprintf(s.out, "(%d affichés sur %s)\n", len(res.Records), util.FormatCount(res.Total))
	}
	return nil
}

func (s *Session) cmdSimilar(ctx context.Context, title string) error {
	if title == "" {
		return fmt.Errorf("%w: similar <titre>", ErrUsage)
	}
	answer, err := s.similar.Lookup(ctx, s.domain, title)
	if err != nil {
		return fmt.Errorf("recherche: %w", err)
	}
	if len(answer.Records) == 0 {
		fmt.Fprintln(s.out, "Aucun titre similaire trouvé.")
		return nil
	}
	fmt.Fprintf(s.out, "Titres similaires à '%s' (via %s)\n", title, answer.Provider)
	writeNumbered(s.out, answer.Records, 0)
	return nil
}

// cmdPrefs accepts preferences but, like the original stub, answers with a
// random sample
func (s *Session) cmdPrefs(args []string) error {
	for _, a := range args {
		if !strings.Contains(a, "=") {
			return fmt.Errorf("%w: prefs [genre=..] [auteur=..]", ErrUsage)
		}
	}
	t, err := s.catalog.Table(s.domain)
	if err != nil {
		return err
	}

	sample := t.Sample(previewRows, s.rng)
	cols := []string{"titre"}
	for _, c := range sample.Columns() {
		if len(cols) > prefsColumns {
			break
		}
		if c != "titre" {
			cols = append(cols, c)
		}
	}
	if !sample.HasColumn("titre") {
		cols = cols[1:]
	}
	view, err := sample.Select(cols...)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "Recommandations personnalisées")
	fmt.Fprintln(s.out, renderTable(view, s.width))
	return nil
}

// Chat answers a free-text message with up to five titles found from its
// first two words, and records both sides in the history
func (s *Session) Chat(ctx context.Context, message string) string {
	s.history = append(s.history, Message{Role: "user", Content: message})

	term := searchTerm(message)
	var b strings.Builder
	fmt.Fprintf(&b, "Voici des recommandations de %s basées sur votre demande concernant '%s' :\n\n", s.domain.Collection(), term)

	var records []table.Record
	if term != "" {
		if answer, err := s.chat.Lookup(ctx, s.domain, term); err == nil {
			records = answer.Records
		} else {
			util.DebugLog("Chat lookup failed: %v", err)
		}
	}

	if len(records) == 0 {
		b.WriteString(noResults)
	} else {
		writeNumbered(&b, records, chatResults)
	}

	response := strings.TrimRight(b.String(), "\n")
	s.history = append(s.history, Message{Role: "assistant", Content: response})
	fmt.Fprintln(s.out, response)
	return response
}

// searchTerm keeps the first two lowercased words of a message
func searchTerm(message string) string {
	words := strings.Fields(strings.ToLower(message))
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}

// writeNumbered prints "i. titre" lines; limit <= 0 prints all
func writeNumbered(w io.Writer, records []table.Record, limit int) {
	for i, rec := range records {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, rec.GetString("titre"))
	}
}

// readLines feeds r line by line until EOF or ctx is done. The line channel
// is closed when the reader stops; a scan error is sent first.
func readLines(ctx context.Context, r io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}
