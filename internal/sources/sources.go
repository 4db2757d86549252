// Package sources holds the immutable registry of configured news sources.
// The registry is built once at startup and passed by value into every
// pipeline component; nothing mutates it afterwards.
package sources

import "path/filepath"

// Source describes one external news publisher.
type Source struct {
	// Key is the short lowercase identifier used in URLs, logs and the
	// articles.source column (e.g. "toi").
	Key string
	// Name is the display name (e.g. "Times of India").
	Name string
	// ModelName is the denormalized collection label recorded on questions
	// (e.g. "TimesOfIndia").
	ModelName string
	// Script is the scraper script filename, resolved against the
	// configured scrapers directory.
	Script string
}

// registry is the compile-time source table. Order here is the processing
// order for every pipeline run.
var registry = []Source{
	{Key: "hindu", Name: "The Hindu", ModelName: "TheHindu", Script: "hindu_scraper.py"},
	{Key: "hindustan-times", Name: "Hindustan Times", ModelName: "HindustanTimes", Script: "hindustan_scraper.py"},
	{Key: "toi", Name: "Times of India", ModelName: "TimesOfIndia", Script: "times_of_india_scraper.py"},
	{Key: "ie", Name: "Indian Express", ModelName: "IndianExpress", Script: "indian_express.py"},
	{Key: "dna", Name: "DNA", ModelName: "DNA", Script: "dna_scraper.py"},
}

// All returns the configured sources in processing order. The returned
// slice is a copy; callers may not reorder the registry.
func All() []Source {
	out := make([]Source, len(registry))
	copy(out, registry)
	return out
}

// ByKey looks up a source by its key.
func ByKey(key string) (Source, bool) {
	for _, s := range registry {
		if s.Key == key {
			return s, true
		}
	}
	return Source{}, false
}

// ScriptPath resolves the source's scraper script against dir.
func (s Source) ScriptPath(dir string) string {
	return filepath.Join(dir, s.Script)
}
