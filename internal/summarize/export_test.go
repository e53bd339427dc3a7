package summarize

// Exports for testing. These allow black-box tests to inject a mock chat
// completer without widening the public API.

// NewTestGenerator creates an OpenAIGenerator around a mock completer.
func NewTestGenerator(client chatCompleter, opts ...GeneratorOption) *OpenAIGenerator {
	return NewOpenAIGenerator(nil, append([]GeneratorOption{withCompleter(client)}, opts...)...)
}
