package openaianalyzer

import (
	"fmt"
	"strings"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// buildCatalog renders the full target catalog as a numbered block the
// model reads before analyzing any source page. Every suggestion must
// point at a URL from this block.
func buildCatalog(catalog []prospect.Page) string {
	var b strings.Builder
	b.WriteString("COMPLETE URL DATABASE (read this first):\n\n")
	for i, page := range catalog {
		fmt.Fprintf(&b, "%d. URL: %s\n   H1: %s\n   Meta Title: %s\n\n", i+1, page.URL, page.H1, page.MetaTitle)
	}
	return b.String()
}

func buildPrompt(page prospect.Page, catalog []prospect.Page, maxSuggestions int) string {
	var b strings.Builder
	b.WriteString(buildCatalog(catalog))
	b.WriteString(`ROLE: You are an SEO content strategist specializing in topical authority and internal link equity distribution.

INSTRUCTIONS:
1. The URL database above lists ALL available target pages. Suggest links ONLY to URLs from that database.
2. Analyze the source page content below and extract the key entities, topics, and concepts it mentions.
3. Match those entities against target pages by semantic relevance to the target's URL, H1, or meta title.
4. Anchor text must be a natural 2-6 word phrase drawn from the source content.
5. The target URL must differ from the source URL, and only suggest a link when the target genuinely adds information.

SOURCE PAGE:
`)
	fmt.Fprintf(&b, "- URL: %s\n- H1: %s\n- Meta Title: %s\n- Content: %s\n\n", page.URL, page.H1, page.MetaTitle, page.Content)
	fmt.Fprintf(&b, `Generate up to %d suggestions. Respond with ONLY a JSON array, no additional text:
[
  {
    "anchor_text": "phrase extracted from the content",
    "target_url": "https://example.com/target-page",
    "entity_match": "how the anchor entity matches the target topic"
  }
]
`, maxSuggestions)
	return b.String()
}
