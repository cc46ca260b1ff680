package prompt

// DiseaseVars fills the context-guided disease translation template.
type DiseaseVars struct {
	ContextParagraph string
	Term             string
}

// BuildDiseaseTranslate renders the prompt that asks the model to
// translate a classical term into plain language, guided by a control
// paragraph. Rendering with an empty ContextParagraph yields the prompt
// skeleton used for token budgeting.
func (pb *PromptBuilder) BuildDiseaseTranslate(contextParagraph, term string) (string, error) {
	return pb.Render(TemplateDiseaseTranslate, DiseaseVars{
		ContextParagraph: contextParagraph,
		Term:             term,
	})
}
