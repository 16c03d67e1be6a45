package limitless

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
)

var placementPattern = regexp.MustCompile(`^(\d+)(?:st|nd|rd|th)\b\s*`)

// ParsePlacement splits a decklist toggle such as "1st Jane Doe" into the
// placement and the player name. Placement is 0 when absent.
func ParsePlacement(text string) (int, string) {
	text = strings.Join(strings.Fields(text), " ")
	m := placementPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, text
	}
	placement, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, text
	}
	return placement, strings.TrimSpace(text[len(m[0]):])
}

// ParseDecklists reads every tournament decklist from a Limitless decklists
// page. Containers without a card list are skipped.
func ParseDecklists(r io.Reader) ([]decks.RawDeck, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		out      []decks.RawDeck
		parseErr error
	)
	doc.Find("div.tournament-decklist").EachWithBreak(func(i int, container *goquery.Selection) bool {
		list := container.Find("div[data-text-decklist]").First()
		if list.Length() == 0 {
			return true
		}

		placement, player := ParsePlacement(container.Find("div.decklist-toggle").First().Text())
		deck := decks.RawDeck{
			Player:    player,
			Placement: placement,
			Archetype: firstLine(container.Find("div.decklist-title").First().Text()),
		}

		list.Find("div.decklist-card").EachWithBreak(func(j int, card *goquery.Selection) bool {
			countText := strings.TrimSpace(card.Find("span.card-count").First().Text())
			count, err := strconv.Atoi(countText)
			if err != nil {
				parseErr = fmt.Errorf("decklist %d card %d: invalid count %q", i, j, countText)
				return false
			}

			set, _ := card.Attr("data-set")
			number, _ := card.Attr("data-number")
			heading := card.Closest("div.decklist-column").Find("div.decklist-column-heading").First().Text()

			deck.Cards = append(deck.Cards, decks.RawCard{
				Count:    count,
				Name:     strings.TrimSpace(card.Find("span.card-name").First().Text()),
				Set:      set,
				Number:   number,
				Category: cards.ParseCategory(heading),
			})
			return true
		})
		if parseErr != nil {
			return false
		}

		out = append(out, deck)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
