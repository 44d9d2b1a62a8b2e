package llm

import "strings"

// FormatPrompt renders turns in ChatML, ending with an open assistant turn.
// Runtimes that accept raw text (the in-process llama adapter) use it; the
// server runtime sends structured messages instead.
func FormatPrompt(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString("<|im_start|>")
		b.WriteString(string(t.Role))
		b.WriteByte('\n')
		b.WriteString(t.Text)
		b.WriteString("<|im_end|>\n")
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

// stopWords end a ChatML reply.
var stopWords = []string{"<|im_end|>", "<|im_start|>"}
