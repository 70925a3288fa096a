package sources

type Source interface {
	// Match checks if this source can handle the given URL
	Match(input string) bool

	// Identifier turns user input into an identifier the audio node can load
	Identifier(input string) (string, error)

	// SourceName returns the string identifier ("youtube", "radio", etc.)
	SourceName() string

	// Searchable reports whether free-text queries are supported
	Searchable() bool
}
