// Package classifier provides mapping.Classifier backends.
//
// Two backends call hosted language models: Anthropic's Messages API over
// plain HTTP and OpenAI through langchaingo. Both are rate limited and retry
// transient failures (network errors, 429, 5xx) with exponential backoff.
// The heuristic backend needs no network; it matches normalized headers
// against an alias table and answers in the same JSON shape, so its output
// goes through the same validation as a model's.
//
// New picks a backend from configuration. A provider without an API key, or
// the "disabled" provider, yields an Unavailable classifier whose every call
// fails with contact.ErrClassifierUnavailable.
package classifier
