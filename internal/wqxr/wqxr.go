// Package wqxr reads WQXR playlist dumps and maps each play onto the raw
// entity strings consumed by the play processor.
package wqxr

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/cmir/pkg/cmir"
	"github.com/cognicore/cmir/pkg/cmir/musicent"
)

// Station is the station code plays are recorded under.
const Station = "WQXR"

// Playlist is one day's playlist document.
type Playlist struct {
	Events []Event `json:"events"`
}

// Event is a program play within the day.
type Event struct {
	ID             string        `json:"id"`
	Title          string        `json:"event_title"`
	StartTimestamp string        `json:"start_timestamp"`
	EndTimestamp   string        `json:"end_timestamp"`
	Date           string        `json:"date"`
	Playlists      []PlayedBlock `json:"playlists"`
}

// PlayedBlock holds the plays of a program.
type PlayedBlock struct {
	ID     string `json:"id"`
	Played []Play `json:"played"`
}

// Play is a single play; Info carries the piece-info HTML fragment.
type Play struct {
	ID           string `json:"id"`
	ISOStartTime string `json:"iso_start_time"`
	Time         string `json:"time"`
	Info         string `json:"info"`
}

// PieceInfo is what ParsePieceInfo extracts from a play's HTML.
type PieceInfo struct {
	Strings   musicent.EntityStrData
	Duration  time.Duration
	CatalogNo string
	// ComposerLinks holds the href of each composer anchor, in order.
	ComposerLinks []string
}

// LoadPlaylist reads a playlist JSON file.
func LoadPlaylist(path string) (Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Playlist{}, fmt.Errorf("read file %s: %w", path, err)
	}
	var pl Playlist
	if err := json.Unmarshal(data, &pl); err != nil {
		return Playlist{}, fmt.Errorf("parse playlist %s: %w", path, err)
	}
	return pl, nil
}

// Plays maps every play of every program with a playlist. Plays whose HTML
// cannot be parsed are logged and skipped. loc may be nil (UTC).
func (pl Playlist) Plays(loc *time.Location) []cmir.Play {
	var out []cmir.Play
	for _, ev := range pl.Events {
		if len(ev.Playlists) == 0 {
			continue
		}
		date := ev.Date
		if sdate, _, ok := strings.Cut(ev.StartTimestamp, "T"); ok {
			if date != "" && sdate != date {
				log.Debug().Str("event", ev.ID).Str("start", sdate).Str("date", date).Msg("date mismatch")
			}
			date = sdate
		}
		for _, p := range ev.Playlists[0].Played {
			cp, err := MapPlay(date, loc, p)
			if err != nil {
				log.Warn().Err(err).Str("event", ev.ID).Str("play", p.ID).Msg("skipping play")
				continue
			}
			out = append(out, cp)
		}
	}
	return out
}

var idDigits = regexp.MustCompile(`([0-9]+)$`)

// MapPlay turns one play into processor input. date is the playlist date
// (YYYY-MM-DD); the play's own ISO timestamp carries the wrong date.
func MapPlay(date string, loc *time.Location, p Play) (cmir.Play, error) {
	info, err := ParsePieceInfo(p.Info)
	if err != nil {
		return cmir.Play{}, err
	}

	play := musicent.Entity{
		"ext_id":    p.ID,
		"play_date": date,
	}
	if p.Time != "" {
		if loc == nil {
			loc = time.UTC
		}
		start, err := time.ParseInLocation("2006-01-02 03:04 PM", date+" "+p.Time, loc)
		if err != nil {
			return cmir.Play{}, fmt.Errorf("play %s start time: %w", p.ID, err)
		}
		play["play_start"] = start.Format("15:04:05")
		play["start_time"] = start.Format(time.RFC3339)
		if info.Duration > 0 {
			play["end_time"] = start.Add(info.Duration).Format(time.RFC3339)
		}
	}
	if info.Duration > 0 {
		play["duration"] = info.Duration.String()
	}
	if info.CatalogNo != "" {
		play["catalog_no"] = info.CatalogNo
	}

	data := musicent.NewPlayData()
	data[musicent.KeyPlay] = play

	var id int64
	if m := idDigits.FindStringSubmatch(p.ID); m != nil {
		id, _ = strconv.ParseInt(m[1], 10, 64)
	}
	return cmir.Play{ID: id, Strings: info.Strings, Data: data}, nil
}

// ParsePieceInfo extracts the entity strings from a piece-info fragment.
// Musicians listed with a role become performers ("name, role"), except
// conductors; musicians without a role are ensembles.
func ParsePieceInfo(fragment string) (PieceInfo, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return PieceInfo{}, fmt.Errorf("parse piece info: %w", err)
	}
	var info PieceInfo

	if d := find(doc, func(n *html.Node) bool { return hasClass(n, "playlist-item__duration") }); d != nil {
		info.Duration = parseDuration(strings.TrimSpace(text(d)))
	}

	infoDiv := find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Div && hasClass(n, "piece-info") })
	if infoDiv == nil {
		return PieceInfo{}, fmt.Errorf("parse piece info: no piece-info div")
	}
	if ul := find(infoDiv, func(n *html.Node) bool { return n.DataAtom == atom.Ul }); ul != nil {
		for _, li := range findAll(ul, func(n *html.Node) bool { return n.DataAtom == atom.Li }) {
			if err := info.addItem(li); err != nil {
				return PieceInfo{}, err
			}
		}
	}

	if album := find(infoDiv, func(n *html.Node) bool { return hasClass(n, "album-info") }); album != nil {
		if actions := find(album, func(n *html.Node) bool { return hasClass(n, "playlist-actions") }); actions != nil {
			for _, li := range findAll(actions, func(n *html.Node) bool { return n.DataAtom == atom.Li }) {
				info.addAction(li)
			}
		}
	}
	return info, nil
}

func (info *PieceInfo) addItem(li *html.Node) error {
	a := find(li, func(n *html.Node) bool { return n.DataAtom == atom.A })
	switch {
	case attr(li, "class") == "":
		if a != nil && hasClass(a, "playlist-item__composer") {
			info.Strings.Composer = append(info.Strings.Composer, strings.TrimSpace(text(a)))
			info.ComposerLinks = append(info.ComposerLinks, attr(a, "href"))
			return nil
		}
		// older playlists carry the duration in a bare <li>
		if d := parseDuration(strings.TrimSpace(text(li))); d > 0 {
			info.Duration = d
		}
	case hasClass(li, "playlist-item__title"):
		info.Strings.Work = append(info.Strings.Work, strings.TrimSpace(text(li)))
	case hasClass(li, "playlist-item__musicians"):
		if a == nil {
			return fmt.Errorf("parse piece info: musicians item without link")
		}
		name := strings.TrimSpace(text(a))
		var next string
		if a.NextSibling != nil && a.NextSibling.Type == html.TextNode {
			next = strings.TrimSpace(a.NextSibling.Data)
		}
		role, hasRole := strings.CutPrefix(next, ", ")
		switch {
		case !hasRole:
			info.Strings.Ensembles = append(info.Strings.Ensembles, name)
		case role == "conductor":
			info.Strings.Conductor = append(info.Strings.Conductor, name)
		default:
			info.Strings.Performers = append(info.Strings.Performers, name+next)
		}
	default:
		log.Warn().Str("class", attr(li, "class")).Msg("unexpected piece-info item")
	}
	return nil
}

func (info *PieceInfo) addAction(li *html.Node) {
	switch {
	case hasClass(li, "playlist-item__album"):
		info.Strings.Recording = []string{strings.TrimSpace(text(li))}
	case hasClass(li, "playlist-buy"):
		a := find(li, func(n *html.Node) bool { return n.DataAtom == atom.A })
		if a == nil {
			return
		}
		u, err := url.Parse(attr(a, "href"))
		if err != nil {
			log.Debug().Err(err).Msg("unparseable buy link")
			return
		}
		q := u.Query()
		if l := q.Get("label"); l != "" {
			info.Strings.Label = []string{l}
		}
		info.CatalogNo = q.Get("cat")
	}
}

var legacyDurRe = regexp2.MustCompile(`^(?:([0-9]+) hrs )?(?:([0-9]+) min )?([0-9]+) s\z`, regexp2.None)

// parseDuration reads "H:MM:SS", "MM:SS" or the legacy "1 hrs 15 min 58 s".
// Unrecognized input yields 0.
func parseDuration(s string) time.Duration {
	if m, _ := legacyDurRe.FindStringMatch(s); m != nil {
		var d time.Duration
		for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
			if g := m.GroupByNumber(i + 1).String(); g != "" {
				n, _ := strconv.Atoi(g)
				d += time.Duration(n) * unit
			}
		}
		return d
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var d time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		d = d*60 + time.Duration(n)
	}
	return d * time.Second
}

// LoadFromJSONL loads pre-extracted entity string records, one JSON object
// per line.
func LoadFromJSONL(path string) ([]musicent.EntityStrData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var recs []musicent.EntityStrData
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec musicent.EntityStrData
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warn().Err(err).Str("path", path).Int("line", i+1).Msg("skipping malformed JSON")
			continue
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		return nil, fmt.Errorf("no valid records found in %s", path)
	}
	return recs, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// find returns the first descendant of n matching pred, depth first.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if f := find(c, pred); f != nil {
			return f
		}
	}
	return nil
}

func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			out = append(out, c)
		}
		out = append(out, findAll(c, pred)...)
	}
	return out
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
