package transcribe

// Exports for testing. These allow black-box tests to inject a mock
// transcription client without widening the public API.

// NewTestTranscriber creates an OpenAITranscriber around a mock client.
func NewTestTranscriber(client audioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	return NewOpenAITranscriber(nil, append([]TranscriberOption{withClient(client)}, opts...)...)
}
