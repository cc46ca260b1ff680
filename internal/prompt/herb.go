package prompt

// HerbVars fills the herb name translation template.
type HerbVars struct {
	HerbName string
}

// BuildHerbTranslate renders the prompt that asks the model for the
// standard English (or Latin) name of a Chinese medicinal herb.
func (pb *PromptBuilder) BuildHerbTranslate(herbName string) (string, error) {
	return pb.Render(TemplateHerbTranslate, HerbVars{HerbName: herbName})
}
