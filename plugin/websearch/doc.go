// Package websearch adapts web search providers to a common result shape.
//
// Tavily, SerpAPI and Brave are JSON APIs that need a key; Google is
// scraped from the HTML results page with goquery. Every provider strips
// markup from titles and snippets with bluemonday and returns a Response
// that can be rendered as Markdown for a model.
//
//	tavily, _ := websearch.NewTavily("")
//	p := websearch.New(websearch.WithProvider(tavily), websearch.WithProvider(websearch.NewGoogle()))
package websearch
