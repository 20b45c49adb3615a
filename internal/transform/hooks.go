package transform

// Input is what a build host passes to a preprocessing hook.
type Input struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// Output is a hook's result.
type Output struct {
	Code string `json:"code"`
}

// Markup transforms the whole component document.
func (t *Transformer) Markup(in Input) Output {
	return Output{Code: t.Transform(in.Content, in.Filename)}
}

// Script passes script blocks through: Markup has already rewritten them.
func (t *Transformer) Script(in Input) Output {
	return Output{Code: in.Content}
}

// Style passes style blocks through.
func (t *Transformer) Style(in Input) Output {
	return Output{Code: in.Content}
}
