package scraper

import (
	"log"
	"strings"

	"m2_harvester/browser"
	"m2_harvester/config"
)

// DiscoveryChain locates listing-card elements on a rendered search page by
// trying an ordered list of detection strategies. The first strategy whose
// selector matches at least one container wins; later strategies are never
// consulted.
type DiscoveryChain struct {
	strategies []config.SelectorRule
	patterns   []string
}

func NewDiscoveryChain(profile *config.SiteProfile) *DiscoveryChain {
	return &DiscoveryChain{
		strategies: profile.CardStrategies,
		patterns:   profile.PathPatterns,
	}
}

// Discover returns the deduplicated detail-page URLs found on the current
// page. An empty result is a normal terminal signal, not an error: it means
// either end-of-results or a page layout none of the strategies recognize.
func (c *DiscoveryChain) Discover(page browser.Page) []string {
	for _, strategy := range c.strategies {
		cards, err := page.Elements(strategy.Selector)
		if err != nil || len(cards) == 0 {
			continue
		}
		log.Printf("Found %d listing cards using %s strategy", len(cards), strategy.Name)
		return c.collectLinks(cards)
	}
	return nil
}

func (c *DiscoveryChain) collectLinks(cards []browser.Element) []string {
	seen := make(map[string]bool)
	var links []string

	for _, card := range cards {
		anchors, err := card.All("a")
		if err != nil || len(anchors) == 0 {
			log.Println("Card has no nested link, skipping")
			continue
		}
		for _, anchor := range anchors {
			href, ok := anchor.Attribute("href")
			if !ok || !c.accepted(href) {
				continue
			}
			if seen[href] {
				continue
			}
			seen[href] = true
			links = append(links, href)
		}
	}

	return links
}

func (c *DiscoveryChain) accepted(href string) bool {
	for _, pattern := range c.patterns {
		if strings.Contains(href, pattern) {
			return true
		}
	}
	return false
}
