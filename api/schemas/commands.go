// File: api/schemas/commands.go
package schemas

// Result is the content returned by a successful command: either text or
// binary data with an associated MIME type. Exactly one of Text or Data is
// populated.
type Result struct {
	ContentType string `json:"content_type"`
	Text        string `json:"text,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// IsBinary reports whether the result carries binary content.
func (r *Result) IsBinary() bool { return len(r.Data) > 0 }

// TextResult builds a plain-text result.
func TextResult(text string) *Result {
	return &Result{ContentType: "text/plain", Text: text}
}

// JSONResult builds a result carrying a JSON-formatted payload as text.
func JSONResult(text string) *Result {
	return &Result{ContentType: "application/json", Text: text}
}

// BinaryResult builds a binary result with an explicit MIME type.
func BinaryResult(mime string, data []byte) *Result {
	return &Result{ContentType: mime, Data: data}
}
