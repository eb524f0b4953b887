package translator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Inputs longer than this are cut before review and fix calls.
const maxReviewChars = 40000

func languageName(code string, fallback string) string {
	if strings.TrimSpace(code) == "" {
		return fallback
	}
	tag, err := language.Parse(code)
	if err != nil {
		return fallback
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return fallback
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func buildTranslatePrompt(req TranslateRequest, sourceLang, targetLang string) (string, string) {
	var system strings.Builder
	system.WriteString("You are a literary translator and editor for serialized web novels. ")
	system.WriteString("Translate both the chapter title and the content from " + sourceLang + " into " + targetLang + ". ")
	system.WriteString("Keep the prose fluent and the style consistent with the previous chapters.\n\n")

	system.WriteString("=== TRANSLATION GUIDELINES ===\n")
	system.WriteString("1. Use the glossary mappings exactly for every proper noun and term they cover\n")
	system.WriteString("2. Read the previous chapters only for context and continuity, never translate them again\n")
	system.WriteString("3. Do not leave any " + sourceLang + " characters in the output\n")
	system.WriteString("4. Do not summarize, skip or add content\n")

	system.WriteString("\n=== OUTPUT FORMAT ===\n")
	system.WriteString("Return ONLY the following, without explanations:\n\n")
	system.WriteString(titleTag + "\n<translated title>\n\n" + contentTag + "\n<translated content>\n")

	var prompt strings.Builder
	prompt.WriteString("=== PREVIOUS CHAPTERS ===\n")
	prompt.WriteString(orNone(req.Preceding))
	prompt.WriteString("\n\n=== GLOSSARY ===\n")
	prompt.WriteString(orNone(req.Glossary))
	prompt.WriteString("\n\n=== SOURCE TEXT ===\n")
	prompt.WriteString(req.Source)
	prompt.WriteString("\n")

	return system.String(), prompt.String()
}

func buildReviewPrompt(source, translated, sourceLang, targetLang string) (string, string) {
	var system strings.Builder
	system.WriteString("You review " + sourceLang + " to " + targetLang + " literary translations.\n\n")
	system.WriteString("=== REVIEW GUIDELINES ===\n")
	system.WriteString("1. Compare source and translation for faithfulness of content and tone\n")
	system.WriteString("2. Wrong proper nouns (characters, places, techniques) are serious errors\n")
	system.WriteString("3. Give a match percentage from 0 to 100\n")
	system.WriteString("4. Subtract 20% if any character from a language other than " + targetLang + " remains\n")
	system.WriteString("\n=== OUTPUT FORMAT ===\n")
	system.WriteString("Match: xx%\n<3 to 6 lines of comments naming concrete errors>\n")

	prompt := fmt.Sprintf("=== SOURCE ===\n%s\n\n=== TRANSLATION ===\n%s\n",
		truncateRunes(source, maxReviewChars),
		truncateRunes(translated, maxReviewChars))
	return system.String(), prompt
}

func buildExtractPrompt(batchText, existing, sourceLang, targetLang string) (string, string) {
	var system strings.Builder
	system.WriteString("You build translation glossaries for serialized novels.\n\n")
	system.WriteString("=== EXTRACT ===\n")
	system.WriteString("Special terms, titles, forms of address, character names, place names, skills and techniques.\n")
	system.WriteString("\n=== SKIP ===\n")
	system.WriteString("Everyday words, common objects, generic professions and anything already in the existing glossary.\n")
	system.WriteString("\n=== RENDERING ===\n")
	system.WriteString("1. Transliterated foreign names go back to their original Latin form\n")
	system.WriteString("2. Terms, titles and places are translated naturally into " + targetLang + "\n")
	system.WriteString("3. Stay consistent with the existing glossary\n")
	system.WriteString("\n=== OUTPUT FORMAT ===\n")
	system.WriteString("Plain text only, one entry per line, no commentary:\n")
	system.WriteString("<" + sourceLang + " term> = <" + targetLang + " term>\n")

	prompt := fmt.Sprintf("=== EXISTING GLOSSARY (do not repeat) ===\n%s\n\n=== TEXT ===\n%s\n",
		orNone(existing), batchText)
	return system.String(), prompt
}

func buildFixPrompt(req FixRequest, sourceLang, targetLang string) (string, string) {
	var system strings.Builder
	system.WriteString("You are a novel translator. The translation below still contains " + sourceLang + " or other foreign characters. ")
	system.WriteString("Rewrite it so that it is entirely in " + targetLang + ", keeping its style and content.\n\n")
	system.WriteString("=== OUTPUT FORMAT ===\n")
	system.WriteString(titleTag + "\n<fixed title>\n\n" + contentTag + "\n<fixed content>\n")

	var prompt strings.Builder
	prompt.WriteString("=== GLOSSARY ===\n")
	prompt.WriteString(orNone(req.Glossary))
	prompt.WriteString("\n\n=== SOURCE TITLE ===\n")
	prompt.WriteString(req.SourceTitle)
	prompt.WriteString("\n=== CURRENT TITLE TRANSLATION ===\n")
	prompt.WriteString(req.TitleTranslation)
	prompt.WriteString("\n\n=== SOURCE CONTENT ===\n")
	prompt.WriteString(truncateRunes(req.SourceContent, maxReviewChars))
	prompt.WriteString("\n\n=== CURRENT TRANSLATION ===\n")
	prompt.WriteString(truncateRunes(req.Translation, maxReviewChars))
	prompt.WriteString("\n")
	return system.String(), prompt.String()
}
