package content

import "github.com/kursadbilgin/cadence-dispatch/internal/domain"

const motivationalPrompt = `Generate a short, motivational message that will be used in an email.
It should encourage the recipient to stay positive and keep moving forward.
Use <p> tags to separate the lines.
Include some emojis.
Do not mention any headers or sign-offs.
No friendship or family references or any references of adult activities.
Tone: warm, uplifting and encouraging.
Length: 100-150 words.
Theme: personal growth, overcoming challenges or daily inspiration.`

const anniversaryPrompt = `Generate a happy birthday message that will be used in an email.
It should be celebratory and express good wishes for the recipient.
Use <p> tags to separate the lines.
Include emojis like cake, balloon and party.
Do not use hearts or anything that could be interpreted as romantic.
Do not mention any headers or sign-offs. No friendship or family references.
No mention of alcohol, gifts or adult activities.
No toasting or "here's to another year of" kind of phrases.
Tone: warm, friendly and celebratory.
Length: approx 100 words.
Theme: celebrating the recipient's special day and wishing them well.`

var prompts = map[domain.PromptKind]string{
	domain.PromptMotivational: motivationalPrompt,
	domain.PromptAnniversary:  anniversaryPrompt,
}

// PromptFor returns the instruction text sent to the model for kind.
func PromptFor(kind domain.PromptKind) (string, bool) {
	p, ok := prompts[kind]
	return p, ok
}
